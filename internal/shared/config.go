package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API        APIConfig        `toml:"api"`
	Generation GenerationConfig `toml:"generation"`
	Polling    PollingConfig    `toml:"polling"`
	Database   DatabaseConfig   `toml:"database"`
	Store      StoreConfig      `toml:"store"`
	Logging    LoggingConfig    `toml:"logging"`
	Server     ServerConfig     `toml:"server"`
	User       UserConfig       `toml:"user"`
}

// APIConfig points the client at the generation backend.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
	// RollPath is "/api/roll" in production and "/api/roll/test" for the shopping variant.
	RollPath  string   `toml:"roll_path"`
	Timeout   Duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"`
	Burst     int      `toml:"burst"`
	AppName   string   `toml:"app_name"`
}

// GenerationConfig holds per-request generation settings.
type GenerationConfig struct {
	NumThemes  int    `toml:"num_themes"`
	RerollCost int    `toml:"reroll_cost"`
	AlbumMode  string `toml:"album_mode"`
}

// PollingConfig is the retry budget for fetching result images and waiting for a job.
type PollingConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	Delay       Duration `toml:"delay"`
	Multiplier  float64  `toml:"multiplier"`
	MaxDelay    Duration `toml:"max_delay"`
	JobWait     Duration `toml:"job_wait"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// StoreConfig selects the response store backend: sqlite, redis or memory.
type StoreConfig struct {
	Backend       string `toml:"backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Prefix        string `toml:"prefix"`
	HistoryLimit  int    `toml:"history_limit"`
}

// LoggingConfig controls log level and the rotating log file.
type LoggingConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// ServerConfig contains sandbox HTTP server settings.
type ServerConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	NotReadyPolls  int    `toml:"not_ready_polls"`
	StartCredits   int    `toml:"start_credits"`
	ImageDimension int    `toml:"image_dimension"`
}

// UserConfig pins a user identity. When empty the identity is created and persisted on first use.
type UserConfig struct {
	ID string `toml:"id"`
}

// Duration is a [time.Duration] that decodes from TOML strings like "2s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values that would otherwise surface as confusing runtime failures.
func (c *Config) Validate() error {
	switch {
	case c.API.BaseURL == "":
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	case c.Generation.NumThemes <= 0:
		return fmt.Errorf("%w: generation.num_themes must be positive", ErrInvalidConfig)
	case c.Polling.MaxAttempts <= 0:
		return fmt.Errorf("%w: polling.max_attempts must be positive", ErrInvalidConfig)
	case c.Polling.Delay.Duration < 0:
		return fmt.Errorf("%w: polling.delay must not be negative", ErrInvalidConfig)
	}

	switch c.Store.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}

	switch c.Generation.AlbumMode {
	case "default", "my_album":
	default:
		return fmt.Errorf("%w: unknown album mode %q", ErrInvalidConfig, c.Generation.AlbumMode)
	}
	return nil
}
