package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the TOML shape of a config file. Durations are written
// as strings ("10s", "200ms") and every field is optional; unset
// fields keep their current value.
type fileConfig struct {
	SourceURL       *string  `toml:"source_url"`
	UserAgent       *string  `toml:"user_agent"`
	Timeout         *string  `toml:"timeout"`
	MaxRetries      *int     `toml:"max_retries"`
	RetryBackoff    *string  `toml:"retry_backoff"`
	RetryBackoffMax *string  `toml:"retry_backoff_max"`
	DedupeMaxSize   *int     `toml:"dedupe_max_size"`
	StoreBackend    *string  `toml:"store_backend"`
	StoreDir        *string  `toml:"store_dir"`
	SQLitePath      *string  `toml:"sqlite_path"`
	PostgresDSN     *string  `toml:"postgres_dsn"`
	SpreadsheetID   *string  `toml:"spreadsheet_id"`
	CredentialsFile *string  `toml:"credentials_file"`
	StoreRateLimit  *float64 `toml:"store_rate_limit"`
	StoreRateBurst  *int     `toml:"store_rate_burst"`
	MetricsAddr     *string  `toml:"metrics_addr"`
}

// LoadFile overlays the TOML file at path onto c.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string, key string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("parse %s in %q: %w", key, path, err)
		}
		*dst = d
		return nil
	}

	setString(&c.SourceURL, fc.SourceURL)
	setString(&c.UserAgent, fc.UserAgent)
	if err := setDuration(&c.Timeout, fc.Timeout, "timeout"); err != nil {
		return err
	}
	setInt(&c.MaxRetries, fc.MaxRetries)
	if err := setDuration(&c.RetryBackoff, fc.RetryBackoff, "retry_backoff"); err != nil {
		return err
	}
	if err := setDuration(&c.RetryBackoffMax, fc.RetryBackoffMax, "retry_backoff_max"); err != nil {
		return err
	}
	setInt(&c.DedupeMaxSize, fc.DedupeMaxSize)
	setString(&c.StoreBackend, fc.StoreBackend)
	setString(&c.StoreDir, fc.StoreDir)
	setString(&c.SQLitePath, fc.SQLitePath)
	setString(&c.PostgresDSN, fc.PostgresDSN)
	setString(&c.SpreadsheetID, fc.SpreadsheetID)
	setString(&c.CredentialsFile, fc.CredentialsFile)
	if fc.StoreRateLimit != nil {
		c.StoreRateLimit = *fc.StoreRateLimit
	}
	setInt(&c.StoreRateBurst, fc.StoreRateBurst)
	setString(&c.MetricsAddr, fc.MetricsAddr)

	return nil
}
