package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL      string
	DBFile         string
	ReconnectBase  time.Duration
	ReconnectMax   time.Duration
	TypingTTL      time.Duration
	SearchDebounce time.Duration
	FetchTimeout   time.Duration
}

func Load() (*Config, error) {
	// Optional .env for local development; env vars win.
	_ = godotenv.Load()

	reconnectBase, err := time.ParseDuration(getEnv("RECONNECT_BASE", "500ms"))
	if err != nil {
		return nil, err
	}
	reconnectMax, err := time.ParseDuration(getEnv("RECONNECT_MAX", "30s"))
	if err != nil {
		return nil, err
	}
	typingTTL, err := time.ParseDuration(getEnv("TYPING_TTL", "6s"))
	if err != nil {
		return nil, err
	}
	searchDebounce, err := time.ParseDuration(getEnv("SEARCH_DEBOUNCE", "300ms"))
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := time.ParseDuration(getEnv("FETCH_TIMEOUT", "15s"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerURL:      getEnv("PARLEY_SERVER", "http://localhost:5000"),
		DBFile:         getEnv("PARLEY_DB", "parley.db"),
		ReconnectBase:  reconnectBase,
		ReconnectMax:   reconnectMax,
		TypingTTL:      typingTTL,
		SearchDebounce: searchDebounce,
		FetchTimeout:   fetchTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("PARLEY_SERVER is required")
	}

	if c.ReconnectBase <= 0 || c.ReconnectMax < c.ReconnectBase {
		return fmt.Errorf("reconnect backoff window is invalid")
	}

	if c.TypingTTL <= 0 {
		return fmt.Errorf("TYPING_TTL must be greater than 0")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
