package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	APIURL       string
	WSURL        string
	DBFile       string
	TokenExpiry  time.Duration
	HistoryLimit int
	HTTPTimeout  time.Duration
}

// Load reads the client settings from the environment.
// In cliMode the local database is optional and DBFile may be empty.
func Load(cliMode bool) (*Config, error) {
	tokenExpiry, err := time.ParseDuration(getEnv("TOKEN_EXPIRY", "24h"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_EXPIRY: %w", err)
	}
	httpTimeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("HTTP_TIMEOUT: %w", err)
	}
	historyLimit, err := strconv.Atoi(getEnv("HISTORY_LIMIT", "500"))
	if err != nil {
		return nil, fmt.Errorf("HISTORY_LIMIT: %w", err)
	}

	cfg := &Config{
		APIURL:       getEnv("TASKTANGO_API_URL", "https://tasktango.dev"),
		WSURL:        getEnv("TASKTANGO_WS_URL", "wss://tasktango.dev/ws"),
		DBFile:       getEnv("TASKTANGO_DB", "tasktango.db"),
		TokenExpiry:  tokenExpiry,
		HistoryLimit: historyLimit,
		HTTPTimeout:  httpTimeout,
	}

	if err := cfg.Validate(cliMode); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate(cliMode bool) error {
	if err := checkURL("TASKTANGO_API_URL", c.APIURL, "http", "https"); err != nil {
		return err
	}
	if err := checkURL("TASKTANGO_WS_URL", c.WSURL, "ws", "wss"); err != nil {
		return err
	}

	if c.DBFile == "" && !cliMode {
		return fmt.Errorf("TASKTANGO_DB is required")
	}

	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be greater than 0")
	}

	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be greater than 0")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be greater than 0")
	}

	return nil
}

func checkURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be an absolute %s URL, got %q", name, schemes[0], raw)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
