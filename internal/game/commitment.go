package game

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MinGuess and MaxGuess bound the guessable range, [MinGuess, MaxGuess).
const (
	MinGuess = 0
	MaxGuess = 1000
)

// NonceCommitment hashes the host's secret nonce the same way ethers.utils.id
// does: keccak256 over the UTF-8 bytes.
func NonceCommitment(nonce string) common.Hash {
	return crypto.Keccak256Hash([]byte(nonce))
}

// NonceNumberCommitment hashes the nonce concatenated with the decimal form of
// the winning number.
func NonceNumberCommitment(nonce string, number int64) common.Hash {
	return crypto.Keccak256Hash([]byte(nonce + strconv.FormatInt(number, 10)))
}

// Commit builds both commitments for a host.
func Commit(nonce string, number int64) (nonceHash, nonceNumHash common.Hash) {
	return NonceCommitment(nonce), NonceNumberCommitment(nonce, number)
}

func validGuess(number int64) bool {
	return number >= MinGuess && number < MaxGuess
}
