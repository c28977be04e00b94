// Package config resolves where the ledger keeps its data and how the SQLite
// pool is tuned. Values come from Default, then an optional config.yaml in the
// data directory, then environment overrides. Command-line flags are applied
// by the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// AppDirName is the directory created under the user's home directory.
	AppDirName = ".ledger-app"

	// DatabaseFileName is the single database file inside the data directory.
	DatabaseFileName = "ledger-app.db"

	// FileName is the optional settings file inside the data directory.
	FileName = "config.yaml"

	EnvDataDir  = "LEDGER_DATA_DIR"
	EnvLogLevel = "LEDGER_LOG_LEVEL"
)

type Config struct {
	// DataDir holds the database file. Created on every startup if missing.
	DataDir string `yaml:"data_dir"`

	// MaxOpenConns bounds the connection pool. Borrowers beyond this wait.
	MaxOpenConns int `yaml:"max_open_conns"`

	// BusyTimeout is how long a write waits on a locked database before
	// failing with SQLITE_BUSY.
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// AuditRetention is how long audit events are kept. Zero keeps them
	// forever.
	AuditRetention time.Duration `yaml:"audit_retention"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in settings rooted at the user's home directory.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	return &Config{
		DataDir:        filepath.Join(home, AppDirName),
		MaxOpenConns:   5,
		BusyTimeout:    5 * time.Second,
		AuditRetention: 90 * 24 * time.Hour,
		LogLevel:       "info",
	}, nil
}

// Load builds the effective configuration. A missing config.yaml is not an
// error; a malformed one is.
func Load() (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.DataDir = dir
	}
	if err := cfg.LoadFile(filepath.Join(cfg.DataDir, FileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	// Environment wins over the file.
	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.DataDir = dir
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}

// LoadFile merges the YAML file at path into c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("config: max_open_conns must be positive, got %d", c.MaxOpenConns)
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("config: busy_timeout must not be negative, got %s", c.BusyTimeout)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// DatabasePath is the absolute path of the ledger database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseFileName)
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
