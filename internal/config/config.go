package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/herosoft/wagate/internal/session"
)

// Config holds the gateway daemon configuration. Values come from an optional
// TOML file and can be overridden per-key through environment variables.
type Config struct {
	// StorageDir is the root for credential stores, the gateway database
	// and logs.
	StorageDir string `toml:"storage_dir" env:"WAGATE_STORAGE_DIR"`

	// DatabasePath overrides the gateway database location. Empty means
	// <storage_dir>/wagate.db.
	DatabasePath string `toml:"database_path" env:"WAGATE_DATABASE_PATH"`

	// PairingCodeTTLSeconds is how long an issued pairing code is presented
	// as valid.
	PairingCodeTTLSeconds int `toml:"pairing_code_ttl_seconds" env:"WAGATE_PAIRING_CODE_TTL"`

	// ReconnectDelaySeconds is the flat delay before the single scheduled
	// reconnect after a non-logout connection close.
	ReconnectDelaySeconds int `toml:"reconnect_delay_seconds" env:"WAGATE_RECONNECT_DELAY"`

	// RenderQR prints QR challenges to the terminal as they are issued.
	RenderQR bool `toml:"render_qr" env:"WAGATE_RENDER_QR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StorageDir:            "storage",
		PairingCodeTTLSeconds: 120,
		ReconnectDelaySeconds: 2,
	}
}

// Load reads configuration: defaults, then the TOML file at path (skipped if
// path is empty or the file does not exist), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env overrides: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.StorageDir == "" {
		return fmt.Errorf("storage_dir must not be empty")
	}
	if c.PairingCodeTTLSeconds <= 0 {
		return fmt.Errorf("pairing_code_ttl_seconds must be positive, got %d", c.PairingCodeTTLSeconds)
	}
	if c.ReconnectDelaySeconds < 0 {
		return fmt.Errorf("reconnect_delay_seconds must not be negative, got %d", c.ReconnectDelaySeconds)
	}
	return nil
}

// PairingCodeTTL returns the pairing code lifetime as a duration.
func (c *Config) PairingCodeTTL() time.Duration {
	return time.Duration(c.PairingCodeTTLSeconds) * time.Second
}

// ReconnectDelay returns the reconnect delay as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

// Database returns the effective gateway database path.
func (c *Config) Database() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return session.DatabasePath(c.StorageDir)
}

// LogFile returns the daemon log file path.
func (c *Config) LogFile() string {
	return session.LogPath(c.StorageDir)
}
