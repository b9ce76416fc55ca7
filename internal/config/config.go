package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAddr        = ":8080"
	DefaultRedisAddr   = "localhost:6379"
	DefaultHistorySize = 50
	DefaultEchoTimeout = 10 * time.Second
)

// Config holds everything the server needs from the environment.
type Config struct {
	Addr        string
	DatabaseDSN string
	RedisAddr   string
	JWTSecret   string
	LogLevel    string

	// HistorySize bounds the initial message window per channel.
	HistorySize int
	// EchoTimeout bounds how long a sent message may wait for its
	// subscription echo before being reported as failed.
	EchoTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present, real environment taking precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:        envOr("ADDR", DefaultAddr),
		DatabaseDSN: os.Getenv("DB_DSN"),
		RedisAddr:   envOr("REDIS_ADDR", DefaultRedisAddr),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		HistorySize: DefaultHistorySize,
		EchoTimeout: DefaultEchoTimeout,
	}

	if v := os.Getenv("CHAT_HISTORY_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.New("CHAT_HISTORY_SIZE must be a positive integer")
		}
		cfg.HistorySize = n
	}
	if v := os.Getenv("CHAT_ECHO_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, errors.New("CHAT_ECHO_TIMEOUT must be a positive duration")
		}
		cfg.EchoTimeout = d
	}

	if cfg.DatabaseDSN == "" {
		return nil, errors.New("DB_DSN is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
