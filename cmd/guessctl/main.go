package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"guess_game/internal/domain"
	"guess_game/internal/game"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
)

var cli struct {
	Debug bool `help:"enable debug logging"`

	Commit     CommitCmd     `cmd:"" help:"print the two commitments for a nonce and number"`
	Verify     VerifyCmd     `cmd:"" help:"check a reveal against published commitments"`
	Distribute DistributeCmd `cmd:"" help:"preview the payout of a pool"`
}

type CommitCmd struct {
	Nonce  string `help:"secret nonce" required:""`
	Number int64  `help:"secret number in [0, 1000)" required:""`
}

func (c *CommitCmd) Run(out io.Writer) error {
	if c.Number < game.MinGuess || c.Number >= game.MaxGuess {
		return fmt.Errorf("number %d out of range [%d, %d)", c.Number, game.MinGuess, game.MaxGuess)
	}
	nonceHash, numHash := game.Commit(c.Nonce, c.Number)
	fmt.Fprintf(out, "nonce_hash:     %s\n", nonceHash.Hex())
	fmt.Fprintf(out, "nonce_num_hash: %s\n", numHash.Hex())
	return nil
}

type VerifyCmd struct {
	Nonce        string `help:"revealed nonce" required:""`
	Number       int64  `help:"revealed number" required:""`
	NonceHash    string `help:"published nonce commitment" required:""`
	NonceNumHash string `help:"published nonce+number commitment" required:""`
}

var errMismatch = errors.New("reveal does not match the commitments")

func (c *VerifyCmd) Run(out io.Writer) error {
	if game.NonceCommitment(c.Nonce) != common.HexToHash(c.NonceHash) {
		log.Debug("nonce commitment differs", "got", game.NonceCommitment(c.Nonce).Hex())
		return fmt.Errorf("%w: %v", errMismatch, game.ErrInvalidNonce)
	}
	if game.NonceNumberCommitment(c.Nonce, c.Number) != common.HexToHash(c.NonceNumHash) {
		return fmt.Errorf("%w: %v", errMismatch, game.ErrInvalidGuessNumber)
	}
	fmt.Fprintln(out, "ok")
	return nil
}

type DistributeCmd struct {
	Number  int64    `help:"revealed number" required:""`
	Pool    string   `help:"pool in wei" required:""`
	Guesses []string `arg:"" help:"guesses as address=number, in submission order"`
}

func (c *DistributeCmd) Run(out io.Writer) error {
	pool, err := domain.ParseWei(c.Pool)
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	guesses, err := parseGuesses(c.Guesses)
	if err != nil {
		return err
	}

	payouts := game.Distribute(guesses, c.Number, pool)
	if len(payouts) == 0 {
		return errors.New("no guesses")
	}
	log.Debug("distributed", "winners", len(payouts), "distance", game.Distance(payouts[0].Number, c.Number))
	for _, p := range payouts {
		fmt.Fprintf(out, "%s %4d %s wei (%s ETH)\n", p.Player.Hex(), p.Number, p.Amount, domain.FormatEther(p.Amount))
	}
	return nil
}

func parseGuesses(raw []string) ([]game.Guess, error) {
	out := make([]game.Guess, 0, len(raw))
	for _, item := range raw {
		addr, num, ok := strings.Cut(item, "=")
		if !ok || !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("guess %q: want address=number", item)
		}
		n, err := strconv.ParseInt(num, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("guess %q: %w", item, err)
		}
		out = append(out, game.Guess{Player: common.HexToAddress(addr), Number: n})
	}
	return out, nil
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("guessctl"),
		kong.Description("Host tooling for commit-reveal guessing games"),
		kong.UsageOnError(),
		kong.BindTo(os.Stdout, (*io.Writer)(nil)),
	)

	if cli.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := ctx.Run(); err != nil {
		log.Fatal("command failed", "error", err)
	}
}
