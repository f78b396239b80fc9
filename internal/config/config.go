// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/calico32/cardgame/internal/auth"
	"github.com/sirupsen/logrus"
)

// Config is the server configuration, read from the environment (and .env via godotenv).
type Config struct {
	Port            string
	LogLevel        logrus.Level
	DecksDir        string
	ReconnectGrace  time.Duration
	RoomReapGrace   time.Duration
	TokenTTL        time.Duration
	TokenPrivateKey string // optional raw ed25519 key files; a fresh pair is generated otherwise
	TokenPublicKey  string
	RedisAddr       string // empty disables the room journal
	RedisDB         int
	JournalQueue    string
	AllowedOrigins  []string
	MaxMessageBytes int64
	InboundRate     float64 // messages per second per connection
	InboundBurst    int
	DrawSeed        int64 // 0 seeds from the clock
	RegionCode      string
}

// Load reads every setting, falling back to defaults for unset variables.
// Malformed values are errors rather than silently replaced.
func Load() (*Config, error) {
	var errs []string
	fail := func(key string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", key, err))
	}

	c := &Config{
		Port:            getEnv("PORT", "8080"),
		DecksDir:        getEnv("DECKS_DIR", "decks"),
		TokenPrivateKey: os.Getenv("TOKEN_PRIVATE_KEY"),
		TokenPublicKey:  os.Getenv("TOKEN_PUBLIC_KEY"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		JournalQueue:    getEnv("ROOM_JOURNAL_QUEUE", "cardgame_room_events"),
		RegionCode:      getEnv("REGION_CODE", "global"),
	}

	var err error
	if c.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "debug")); err != nil {
		fail("LOG_LEVEL", err)
	}
	if c.ReconnectGrace, err = getEnvDuration("RECONNECT_GRACE", 30*time.Second); err != nil {
		fail("RECONNECT_GRACE", err)
	}
	if c.RoomReapGrace, err = getEnvDuration("ROOM_REAP_GRACE", 60*time.Second); err != nil {
		fail("ROOM_REAP_GRACE", err)
	}
	if c.TokenTTL, err = auth.ParseTTL(os.Getenv("TOKEN_EXPIRE_TIME")); err != nil {
		fail("TOKEN_EXPIRE_TIME", err)
	}
	if c.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		fail("REDIS_DB", err)
	}
	var maxBytes int
	if maxBytes, err = getEnvInt("MAX_MESSAGE_BYTES", 1<<20); err != nil {
		fail("MAX_MESSAGE_BYTES", err)
	}
	c.MaxMessageBytes = int64(maxBytes)
	var rate int
	if rate, err = getEnvInt("INBOUND_RATE", 10); err != nil {
		fail("INBOUND_RATE", err)
	}
	c.InboundRate = float64(rate)
	if c.InboundBurst, err = getEnvInt("INBOUND_BURST", 20); err != nil {
		fail("INBOUND_BURST", err)
	}
	var seed int
	if seed, err = getEnvInt("DRAW_SEED", 0); err != nil {
		fail("DRAW_SEED", err)
	}
	c.DrawSeed = int64(seed)

	for _, o := range strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.AllowedOrigins = append(c.AllowedOrigins, o)
		}
	}

	if c.ReconnectGrace <= 0 {
		fail("RECONNECT_GRACE", fmt.Errorf("must be positive"))
	}
	if c.RoomReapGrace <= 0 {
		fail("ROOM_REAP_GRACE", fmt.Errorf("must be positive"))
	}
	if c.MaxMessageBytes <= 0 {
		fail("MAX_MESSAGE_BYTES", fmt.Errorf("must be positive"))
	}
	if c.InboundRate <= 0 || c.InboundBurst <= 0 {
		fail("INBOUND_RATE", fmt.Errorf("rate and burst must be positive"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return c, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// getEnv reads an environment variable or returns def.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, or returns def when unset.
func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// getEnvDuration accepts Go durations ("45s") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}
