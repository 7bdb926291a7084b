package shared

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override the loaded TOML config.
const (
	EnvBaseURL      = "MULTIVERSE_BASE_URL"
	EnvRollPath     = "MULTIVERSE_ROLL_PATH"
	EnvUserID       = "MULTIVERSE_USER_ID"
	EnvStoreBackend = "MULTIVERSE_STORE_BACKEND"
	EnvRedisAddr    = "MULTIVERSE_REDIS_ADDR"
	EnvDatabasePath = "MULTIVERSE_DATABASE_PATH"
	EnvLogLevel     = "MULTIVERSE_LOG_LEVEL"
	EnvMaxAttempts  = "MULTIVERSE_POLL_MAX_ATTEMPTS"
	EnvPollDelay    = "MULTIVERSE_POLL_DELAY"
)

// LoadDotEnv loads the given .env files (or ./.env) into the process environment.
//
// A missing file is not an error; existing variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ApplyEnv overlays MULTIVERSE_* environment variables onto c.
func (c *Config) ApplyEnv() {
	c.API.BaseURL = getEnvOrDefault(EnvBaseURL, c.API.BaseURL)
	c.API.RollPath = getEnvOrDefault(EnvRollPath, c.API.RollPath)
	c.User.ID = getEnvOrDefault(EnvUserID, c.User.ID)
	c.Store.Backend = getEnvOrDefault(EnvStoreBackend, c.Store.Backend)
	c.Store.RedisAddr = getEnvOrDefault(EnvRedisAddr, c.Store.RedisAddr)
	c.Database.Path = getEnvOrDefault(EnvDatabasePath, c.Database.Path)
	c.Logging.Level = getEnvOrDefault(EnvLogLevel, c.Logging.Level)
	c.Polling.MaxAttempts = getEnvAsIntOrDefault(EnvMaxAttempts, c.Polling.MaxAttempts)
	c.Polling.Delay.Duration = getEnvAsDurationOrDefault(EnvPollDelay, c.Polling.Delay.Duration)
}

func getEnvOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvAsIntOrDefault(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvAsDurationOrDefault(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
