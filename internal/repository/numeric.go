package repository

import (
	"errors"
	"math/big"

	"github.com/jackc/pgx/v5/pgtype"
)

var errNotWhole = errors.New("numeric is not a whole finite number")

// wei columns are NUMERIC(78,0); values travel as pgtype.Numeric.
func toNumeric(v *big.Int) pgtype.Numeric {
	if v == nil {
		v = new(big.Int)
	}
	return pgtype.Numeric{Int: new(big.Int).Set(v), Exp: 0, Valid: true}
}

func fromNumeric(n pgtype.Numeric) (*big.Int, error) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite {
		return nil, errNotWhole
	}
	v := new(big.Int)
	if n.Int != nil {
		v.Set(n.Int)
	}
	if n.Exp == 0 {
		return v, nil
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs32(n.Exp))), nil)
	if n.Exp > 0 {
		return v.Mul(v, scale), nil
	}
	q, r := new(big.Int).QuoRem(v, scale, new(big.Int))
	if r.Sign() != 0 {
		return nil, errNotWhole
	}
	return q, nil
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
