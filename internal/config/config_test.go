package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/studio")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultRedisAddr, cfg.RedisAddr)
	assert.Equal(t, DefaultHistorySize, cfg.HistorySize)
	assert.Equal(t, DefaultEchoTimeout, cfg.EchoTimeout)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("JWT_SECRET", "s3cret")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_DSN", "postgres://localhost/studio")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/studio")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CHAT_HISTORY_SIZE", "200")
	t.Setenv("CHAT_ECHO_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.HistorySize)
	assert.Equal(t, 3*time.Second, cfg.EchoTimeout)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/studio")
	t.Setenv("JWT_SECRET", "s3cret")

	t.Setenv("CHAT_HISTORY_SIZE", "zero")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CHAT_HISTORY_SIZE", "50")
	t.Setenv("CHAT_ECHO_TIMEOUT", "-1s")
	_, err = Load()
	assert.Error(t, err)
}
