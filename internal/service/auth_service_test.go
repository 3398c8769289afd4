package service

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"guess_game/internal/auth"

	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletLogin(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	// tokens are checked against wall time
	svc := NewAuthService("test-secret", time.Hour, []common.Address{addr}, quartz.NewReal())

	_, err = svc.Login(addr, "0x00")
	require.ErrorIs(t, err, ErrNoChallenge)

	msg, err := svc.Challenge(addr)
	require.NoError(t, err)
	assert.Contains(t, msg, addr.Hex())

	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = svc.Login(addr, sign(t, other, msg))
	require.ErrorIs(t, err, auth.ErrBadSignature)

	token, err := svc.Login(addr, sign(t, key, msg))
	require.NoError(t, err)

	got, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
	assert.True(t, svc.IsAdmin(got))
	assert.False(t, svc.IsAdmin(crypto.PubkeyToAddress(other.PublicKey)))

	// the challenge is single use
	_, err = svc.Login(addr, sign(t, key, msg))
	assert.ErrorIs(t, err, ErrNoChallenge)

	_, err = NewAuthService("other-secret", time.Hour, nil, nil).Verify(token)
	assert.Error(t, err)
}

func sign(t *testing.T, key *ecdsa.PrivateKey, msg string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}
