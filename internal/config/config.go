package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/basel-ax/tripo/internal/domain"
)

const (
	// EnvFile is where a prompted API key is persisted
	EnvFile   = ".env"
	APIKeyEnv = "TRIPO_API_KEY"
)

var envFiles = []string{EnvFile, ".env.local"}

// JournalConfig holds the optional task journal database configuration
type JournalConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Config holds all configuration for the application
type Config struct {
	APIKey          string
	BaseURL         string
	InputDir        string
	OutputDir       string
	PollInterval    time.Duration
	MaxAttempts     int
	RequestTimeout  time.Duration
	DownloadTimeout time.Duration
	LogLevel        string
	Journal         JournalConfig
}

// Load loads the configuration from .env files and environment variables.
// Missing .env files are not an error.
func Load() (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s file: %w", f, err)
		}
	}

	config := &Config{
		APIKey:          strings.TrimSpace(os.Getenv(APIKeyEnv)),
		BaseURL:         getenv("TRIPO_BASE_URL", "https://api.tripo3d.ai/v2/openapi"),
		InputDir:        getenv("TRIPO_INPUT_DIR", "input"),
		OutputDir:       getenv("TRIPO_OUTPUT_DIR", "output"),
		PollInterval:    getenvSeconds("TRIPO_POLL_INTERVAL", 5*time.Second),
		MaxAttempts:     getenvInt("TRIPO_MAX_ATTEMPTS", 360),
		RequestTimeout:  getenvSeconds("TRIPO_REQUEST_TIMEOUT", 30*time.Second),
		DownloadTimeout: getenvSeconds("TRIPO_DOWNLOAD_TIMEOUT", 10*time.Minute),
		LogLevel:        getenv("LOG_LEVEL", "info"),
	}

	config.Journal = JournalConfig{
		DSN:             os.Getenv("TRIPO_JOURNAL_DSN"),
		MaxOpenConns:    getenvInt("DB_MAX_OPEN_CONNS", 5),
		MaxIdleConns:    getenvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getenvSeconds("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that have no usable fallback
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("TRIPO_BASE_URL must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive, got %d", c.MaxAttempts)
	}
	return nil
}

// RequireAPIKey returns domain.ErrMissingAPIKey when no key is set
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return domain.ErrMissingAPIKey
	}
	return nil
}

// SaveAPIKey writes the API key into the env file at path, keeping any other
// variables already stored there.
func SaveAPIKey(path, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrMissingAPIKey
	}

	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading %s: %w", path, err)
		}
		env = map[string]string{}
	}
	env[APIKeyEnv] = key

	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def // default value
}

func getenvSeconds(key string, def time.Duration) time.Duration {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return time.Duration(v) * time.Second
	}
	return def // default value
}
