// Package config loads the command line tool's configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the tool's configuration. Command line flags override it.
type Config struct {
	DBPath    string
	ServerURL string
	Addr      string
	UID       int64
	CRM       bool
	Logging   LoggingConfig
	Server    ServerConfig

	// parse problems found by Load, reported by Validate
	invalid ValidationErrors
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// LoadDotEnv reads the given .env files (".env" when none are named) into
// the process environment. Missing files are not an error; variables
// already set win.
func LoadDotEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Load builds the configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:    getEnv("CONFUTIL_DB", "confutil.db"),
		ServerURL: getEnv("CONFUTIL_SERVER", "http://localhost:8888"),
		Addr:      getEnv("CONFUTIL_ADDR", ":8888"),
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			Output: getEnv("LOG_OUTPUT", "stderr"),
		},
	}
	cfg.UID = cfg.parseInt("CONFUTIL_UID", "1")
	cfg.CRM = cfg.parseBool("CONFUTIL_CRM", "false")
	cfg.Server = ServerConfig{
		ReadTimeout:  cfg.parseDuration("READ_TIMEOUT", "10s"),
		WriteTimeout: cfg.parseDuration("WRITE_TIMEOUT", "30s"),
		IdleTimeout:  cfg.parseDuration("IDLE_TIMEOUT", "60s"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) parseInt(key, def string) int64 {
	raw := getEnv(key, def)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.invalid = append(c.invalid, ValidationError{Field: key, Value: raw, Message: "must be an integer"})
	}
	return n
}

func (c *Config) parseBool(key, def string) bool {
	raw := getEnv(key, def)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		c.invalid = append(c.invalid, ValidationError{Field: key, Value: raw, Message: "must be a boolean"})
	}
	return b
}

func (c *Config) parseDuration(key, def string) time.Duration {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		c.invalid = append(c.invalid, ValidationError{Field: key, Value: raw, Message: "must be a duration"})
	}
	return d
}
