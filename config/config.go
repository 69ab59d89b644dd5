package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Store backend names accepted by Config.StoreBackend.
const (
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSheets   = "sheets"
)

// Config holds tracker configuration.
type Config struct {
	SourceURL       string
	UserAgent       string
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	DedupeMaxSize   int

	StoreBackend    string // csv, sqlite, postgres, or sheets
	StoreDir        string // csv backend
	SQLitePath      string // sqlite backend
	PostgresDSN     string // postgres backend
	SpreadsheetID   string // sheets backend
	CredentialsFile string // sheets backend

	// StoreRateLimit throttles store calls (requests per second);
	// 0 disables throttling.
	StoreRateLimit float64
	StoreRateBurst int

	MetricsAddr string
	DryRun      bool
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the vendor menu.
func DefaultConfig() *Config {
	return &Config{
		SourceURL:       "https://veritasthca.com/2023/06/17/live-rosin-menu/",
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		DedupeMaxSize:   1000,
		StoreBackend:    BackendSQLite,
		StoreDir:        "data",
		SQLitePath:      "data/menuwatch.db",
		StoreRateBurst:  5,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SourceURL == "" {
		return fmt.Errorf("source URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.SourceURL)
	if err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("source URL must include a host")
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.StoreRateLimit < 0 {
		return fmt.Errorf("store rate limit cannot be negative")
	}

	switch c.StoreBackend {
	case BackendCSV:
		if c.StoreDir == "" {
			return fmt.Errorf("store dir cannot be empty for the csv backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path cannot be empty for the sqlite backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres DSN cannot be empty for the postgres backend")
		}
	case BackendSheets:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet ID cannot be empty for the sheets backend")
		}
		if c.CredentialsFile == "" {
			return fmt.Errorf("credentials file cannot be empty for the sheets backend")
		}
	default:
		return fmt.Errorf("store backend must be csv, sqlite, postgres, or sheets")
	}

	return nil
}

// EnvString reads an environment variable, reporting whether it was
// set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	return value, ok
}

// EnvInt reads an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, true, nil
}
