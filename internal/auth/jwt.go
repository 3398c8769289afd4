package auth

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Address string `json:"addr"`
	jwt.RegisteredClaims
}

// Sign issues a session token for addr valid for ttl from now.
func Sign(secret []byte, addr common.Address, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Address: addr.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func Verify(secret []byte, token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || !common.IsHexAddress(claims.Address) {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Wallet is the address the token was issued to.
func (c *Claims) Wallet() common.Address {
	return common.HexToAddress(c.Address)
}
