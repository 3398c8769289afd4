package game

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Guess is one recorded admission.
type Guess struct {
	Player common.Address `json:"player"`
	Number int64          `json:"number"`
}

// Payout is the amount owed to one winner.
type Payout struct {
	Player common.Address `json:"player"`
	Number int64          `json:"number"`
	Amount *big.Int       `json:"amount"`
}

// Distance returns |guess - target|. The difference of two int64 values
// always fits in a uint64, so the subtraction is done there.
func Distance(guess, target int64) uint64 {
	if guess > target {
		return uint64(guess) - uint64(target)
	}
	return uint64(target) - uint64(guess)
}

// Winners returns every guess at the minimal distance from target, in
// insertion order.
func Winners(guesses []Guess, target int64) []Guess {
	if len(guesses) == 0 {
		return nil
	}

	best := Distance(guesses[0].Number, target)
	for _, g := range guesses[1:] {
		if d := Distance(g.Number, target); d < best {
			best = d
		}
	}

	var winners []Guess
	for _, g := range guesses {
		if Distance(g.Number, target) == best {
			winners = append(winners, g)
		}
	}
	return winners
}

// Distribute splits pool among the guesses closest to target. The integer
// remainder of the split goes to the first winner, so the payouts always sum
// to pool exactly.
func Distribute(guesses []Guess, target int64, pool *big.Int) []Payout {
	winners := Winners(guesses, target)
	if len(winners) == 0 {
		return nil
	}

	share, rem := new(big.Int).QuoRem(pool, big.NewInt(int64(len(winners))), new(big.Int))

	payouts := make([]Payout, 0, len(winners))
	for i, w := range winners {
		amount := new(big.Int).Set(share)
		if i == 0 {
			amount.Add(amount, rem)
		}
		payouts = append(payouts, Payout{Player: w.Player, Number: w.Number, Amount: amount})
	}
	return payouts
}

// Total sums payout amounts.
func Total(payouts []Payout) *big.Int {
	sum := new(big.Int)
	for _, p := range payouts {
		sum.Add(sum, p.Amount)
	}
	return sum
}
