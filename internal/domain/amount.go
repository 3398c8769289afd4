package domain

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// ether has 18 decimals of wei
const etherDecimals = 18

var ErrInvalidAmount = errors.New("invalid amount")

// ParseWei parses a non-negative whole number of wei. Scientific notation
// ("1e18") is accepted.
func ParseWei(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	return decimalToWei(d)
}

// ParseEther parses an ether amount such as "1.5" into wei.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	return EtherToWei(d)
}

// EtherToWei converts an ether amount to wei, rejecting sub-wei precision.
func EtherToWei(d decimal.Decimal) (*big.Int, error) {
	return decimalToWei(d.Shift(etherDecimals))
}

// FormatEther renders wei as ether without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}

func decimalToWei(d decimal.Decimal) (*big.Int, error) {
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return nil, ErrInvalidAmount
	}
	return d.BigInt(), nil
}
