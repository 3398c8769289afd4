package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"guess_game/internal/auth"

	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
)

var ErrNoChallenge = errors.New("no pending challenge for address")

const challengeTTL = 5 * time.Minute

// AuthService runs the wallet login: a one-time challenge, signed with
// personal_sign, exchanged for a JWT.
type AuthService struct {
	secret     []byte
	ttl        time.Duration
	admins     map[common.Address]struct{}
	challenges *cache.Cache
	clock      quartz.Clock
}

func NewAuthService(secret string, ttl time.Duration, admins []common.Address, clock quartz.Clock) *AuthService {
	if clock == nil {
		clock = quartz.NewReal()
	}
	set := make(map[common.Address]struct{}, len(admins))
	for _, a := range admins {
		set[a] = struct{}{}
	}
	return &AuthService{
		secret:     []byte(secret),
		ttl:        ttl,
		admins:     set,
		challenges: cache.New(challengeTTL, 10*time.Minute),
		clock:      clock,
	}
}

// Challenge returns the message addr has to sign. A new call replaces any
// pending challenge.
func (s *AuthService) Challenge(addr common.Address) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Sign in to guess_game\naddress: %s\nnonce: %s", addr.Hex(), hex.EncodeToString(buf))
	s.challenges.Set(addr.Hex(), msg, cache.DefaultExpiration)
	return msg, nil
}

// Login consumes the pending challenge and returns a session token.
func (s *AuthService) Login(addr common.Address, signature string) (string, error) {
	v, ok := s.challenges.Get(addr.Hex())
	if !ok {
		return "", ErrNoChallenge
	}
	if err := auth.VerifySignature(addr, v.(string), signature); err != nil {
		return "", err
	}
	s.challenges.Delete(addr.Hex())

	return auth.Sign(s.secret, addr, s.clock.Now(), s.ttl)
}

func (s *AuthService) Verify(token string) (common.Address, error) {
	claims, err := auth.Verify(s.secret, token)
	if err != nil {
		return common.Address{}, err
	}
	return claims.Wallet(), nil
}

func (s *AuthService) IsAdmin(addr common.Address) bool {
	_, ok := s.admins[addr]
	return ok
}
