package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "APP_PORT", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL", "RUN_MIGRATIONS",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "SNAPSHOT_TTL", "RATE_LIMIT_PER_MINUTE",
		"JWT_SECRET", "JWT_TTL", "ADMIN_ADDRESSES", "BOT_TOKEN", "ADMIN_TELEGRAM_IDS",
		"ALLOWED_ORIGIN", "GUESS_GAME_NONCE", "GUESS_GAME_NUMBER", "GUESS_GAME_NUM_OF_PLAYERS",
		"GUESS_GAME_HOST", "GUESS_GAME_FUND_ETH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", c.Env)
	assert.Equal(t, "8080", c.AppPort)
	assert.True(t, c.RunMigrations)
	assert.Equal(t, 60, c.RateLimitPerMinute)
	assert.False(t, c.AdminBotEnabled)
	assert.False(t, c.Bootstrap.Enabled())
}

func TestLoadLists(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_ADDRESSES", "0x00000000000000000000000000000000000000a1, 0x00000000000000000000000000000000000000b2")
	t.Setenv("BOT_TOKEN", "token")
	t.Setenv("ADMIN_TELEGRAM_IDS", "1,2")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{
		common.HexToAddress("0xa1"),
		common.HexToAddress("0xb2"),
	}, c.AdminAddresses)
	assert.Equal(t, []int64{1, 2}, c.AdminTelegramIDs)
	assert.True(t, c.AdminBotEnabled)

	t.Setenv("ADMIN_ADDRESSES", "not-an-address")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadBootstrap(t *testing.T) {
	clearEnv(t)
	t.Setenv("GUESS_GAME_NONCE", "nonce")
	t.Setenv("GUESS_GAME_NUMBER", "999")
	t.Setenv("GUESS_GAME_NUM_OF_PLAYERS", "2")
	t.Setenv("GUESS_GAME_HOST", "0x00000000000000000000000000000000000000a1")

	c, err := Load()
	require.NoError(t, err)
	require.True(t, c.Bootstrap.Enabled())
	assert.Equal(t, int64(999), c.Bootstrap.Number)
	assert.Equal(t, "1", c.Bootstrap.FundETH.String())

	t.Setenv("GUESS_GAME_NUMBER", "1000")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("GUESS_GAME_NUMBER", "1")
	t.Setenv("GUESS_GAME_NUM_OF_PLAYERS", "1")
	_, err = Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := Load()
	require.NoError(t, err)

	prod := base
	prod.Env = "prod"
	assert.Error(t, prod.Validate())
	prod.JWTSecret = "real-secret"
	assert.NoError(t, prod.Validate())

	badFormat := base
	badFormat.LogFormat = "xml"
	assert.Error(t, badFormat.Validate())

	noDB := base
	noDB.DatabaseURL = ""
	assert.Error(t, noDB.Validate())
}
