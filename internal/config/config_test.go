package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Registry.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Fetch.MaxConcurrency)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 10000, cfg.Fetch.MaxBodyChars)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, 20000, cfg.Anthropic.MaxTokens)
	assert.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 16384, cfg.OpenAI.MaxTokens)
	assert.Equal(t, "pdftotext", cfg.Extract.PdfToTextPath)
	assert.Equal(t, 40, cfg.Extract.OCRCharMinimum)
	assert.Equal(t, 300, cfg.Generate.CallTimeoutSecs)
	assert.InDelta(t, 0.3, cfg.Generate.Temperature, 0.001)
	assert.Equal(t, "knowledge", cfg.Knowledge.Dir)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
registry:
  driver: sqlite
  sqlite_path: /tmp/cases.db
log:
  level: debug
  format: console
server:
  port: 9090
fetch:
  max_concurrency: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Registry.Driver)
	assert.Equal(t, "/tmp/cases.db", cfg.Registry.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Fetch.MaxConcurrency)
	// Defaults still apply for unset values
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
registry:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PETITION_REGISTRY_DRIVER", "postgres")
	t.Setenv("PETITION_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Registry.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PETITION_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Registry.Driver = "memory"
	cfg.Fetch.MaxConcurrency = 10
	cfg.Generate.Temperature = 0.3
	cfg.Server.Port = 8080
	cfg.Anthropic.Key = "sk-ant-key"
	return cfg
}

func TestValidateGenerate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("generate"))
}

func TestValidateGenerate_MissingKey(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = ""

	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateRegistryDrivers(t *testing.T) {
	cfg := validDefaults()

	cfg.Registry.Driver = "sqlite"
	cfg.Registry.SQLitePath = ""
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "registry.sqlite_path is required")

	cfg.Registry.Driver = "postgres"
	err = cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "registry.database_url is required")

	cfg.Registry.Driver = "redis"
	err = cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "registry.driver must be")

	cfg.Registry.Driver = "memory"
	assert.NoError(t, cfg.Validate("generate"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Fetch.MaxConcurrency = 0
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.max_concurrency must be between 1 and 50")

	cfg.Fetch.MaxConcurrency = 51
	err = cfg.Validate("generate")
	assert.Error(t, err)

	cfg.Fetch.MaxConcurrency = 50
	assert.NoError(t, cfg.Validate("generate"))
}

func TestValidateTemperatureBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Generate.Temperature = -0.1
	err := cfg.Validate("generate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "generate.temperature")

	cfg.Generate.Temperature = 1.5
	err = cfg.Validate("generate")
	assert.Error(t, err)

	cfg.Generate.Temperature = 1.0
	assert.NoError(t, cfg.Validate("generate"))
}
