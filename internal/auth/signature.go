package auth

import (
	"errors"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrBadSignature = errors.New("signature does not match address")

// RecoverAddress returns the signer of a personal_sign (EIP-191) message.
// Wallets send v as 27/28; both that and the raw 0/1 form are accepted.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, ErrBadSignature
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrBadSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, ErrBadSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that addr signed message.
func VerifySignature(addr common.Address, message, signature string) error {
	signer, err := RecoverAddress(message, signature)
	if err != nil {
		return err
	}
	if signer != addr {
		return ErrBadSignature
	}
	return nil
}
