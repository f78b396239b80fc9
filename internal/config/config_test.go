package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PORT", "LOG_LEVEL", "DECKS_DIR", "RECONNECT_GRACE", "ROOM_REAP_GRACE", "TOKEN_EXPIRE_TIME",
	"TOKEN_PRIVATE_KEY", "TOKEN_PUBLIC_KEY", "REDIS_ADDR", "REDIS_DB", "ROOM_JOURNAL_QUEUE",
	"ALLOWED_ORIGINS", "MAX_MESSAGE_BYTES", "INBOUND_RATE", "INBOUND_BURST", "DRAW_SEED", "REGION_CODE",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Addr())
	assert.Equal(t, logrus.DebugLevel, c.LogLevel)
	assert.Equal(t, "decks", c.DecksDir)
	assert.Equal(t, 30*time.Second, c.ReconnectGrace)
	assert.Equal(t, time.Minute, c.RoomReapGrace)
	assert.Zero(t, c.TokenTTL)
	assert.Empty(t, c.RedisAddr)
	assert.Equal(t, "cardgame_room_events", c.JournalQueue)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
	assert.Equal(t, int64(1<<20), c.MaxMessageBytes)
	assert.Equal(t, 10.0, c.InboundRate)
	assert.Equal(t, 20, c.InboundBurst)
	assert.Zero(t, c.DrawSeed)
	assert.Equal(t, "global", c.RegionCode)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RECONNECT_GRACE", "5")
	t.Setenv("ROOM_REAP_GRACE", "2m")
	t.Setenv("TOKEN_EXPIRE_TIME", "24h")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DRAW_SEED", "1234")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Addr())
	assert.Equal(t, logrus.WarnLevel, c.LogLevel)
	assert.Equal(t, 5*time.Second, c.ReconnectGrace)
	assert.Equal(t, 2*time.Minute, c.RoomReapGrace)
	assert.Equal(t, 24*time.Hour, c.TokenTTL)
	assert.Equal(t, "redis:6379", c.RedisAddr)
	assert.Equal(t, 3, c.RedisDB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
	assert.Equal(t, int64(1234), c.DrawSeed)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "chatty")
	t.Setenv("REDIS_DB", "zero")
	t.Setenv("RECONNECT_GRACE", "-1s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "REDIS_DB")
	assert.Contains(t, err.Error(), "RECONNECT_GRACE")
}

func TestLoadRejectsNonPositiveGrace(t *testing.T) {
	clearEnv(t)
	t.Setenv("ROOM_REAP_GRACE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROOM_REAP_GRACE")
	assert.NotContains(t, err.Error(), "RECONNECT_GRACE")

	t.Setenv("ROOM_REAP_GRACE", "")
	t.Setenv("RECONNECT_GRACE", "0s")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECONNECT_GRACE")
}
