package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basel-ax/tripo/internal/domain"
)

var configKeys = []string{
	"TRIPO_API_KEY", "TRIPO_BASE_URL", "TRIPO_INPUT_DIR", "TRIPO_OUTPUT_DIR",
	"TRIPO_POLL_INTERVAL", "TRIPO_MAX_ATTEMPTS", "TRIPO_REQUEST_TIMEOUT",
	"TRIPO_DOWNLOAD_TIMEOUT", "TRIPO_JOURNAL_DSN", "LOG_LEVEL",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
}

// isolate runs the test from an empty directory with a clean environment.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, "https://api.tripo3d.ai/v2/openapi", cfg.BaseURL)
	assert.Equal(t, "input", cfg.InputDir)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 360, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Journal.DSN)
	assert.Equal(t, 5, cfg.Journal.MaxOpenConns)
	assert.ErrorIs(t, cfg.RequireAPIKey(), domain.ErrMissingAPIKey)
}

func TestLoad_FromEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("TRIPO_API_KEY", " tsk_123 ")
	t.Setenv("TRIPO_POLL_INTERVAL", "2")
	t.Setenv("TRIPO_MAX_ATTEMPTS", "10")
	t.Setenv("TRIPO_OUTPUT_DIR", "renders")
	t.Setenv("TRIPO_JOURNAL_DSN", "postgres://localhost/tripo")
	t.Setenv("TRIPO_DOWNLOAD_TIMEOUT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tsk_123", cfg.APIKey)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.MaxAttempts)
	assert.Equal(t, "renders", cfg.OutputDir)
	assert.Equal(t, "postgres://localhost/tripo", cfg.Journal.DSN)
	assert.Equal(t, 10*time.Minute, cfg.DownloadTimeout)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestLoad_FromEnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TRIPO_INPUT_DIR=photos\n"), 0o600))
	// godotenv does not override variables that are already set, so drop the
	// empty value isolate registered.
	require.NoError(t, os.Unsetenv("TRIPO_INPUT_DIR"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "photos", cfg.InputDir)
}

func TestLoad_RejectsInvalidBounds(t *testing.T) {
	isolate(t)
	t.Setenv("TRIPO_MAX_ATTEMPTS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{BaseURL: "http://x", PollInterval: time.Second, MaxAttempts: 1}
	assert.NoError(t, valid.Validate())

	noURL := valid
	noURL.BaseURL = " "
	assert.Error(t, noURL.Validate())

	noInterval := valid
	noInterval.PollInterval = 0
	assert.Error(t, noInterval.Validate())
}

func TestSaveAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	require.NoError(t, SaveAPIKey(path, " first "))
	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"TRIPO_API_KEY": "first"}, env)

	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nTRIPO_API_KEY=old\n"), 0o600))
	require.NoError(t, SaveAPIKey(path, "second"))
	env, err = godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"LOG_LEVEL": "debug", "TRIPO_API_KEY": "second"}, env)

	assert.ErrorIs(t, SaveAPIKey(path, "  "), domain.ErrMissingAPIKey)
}
