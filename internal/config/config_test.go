package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 30*time.Second, cfg.API.ReadTimeout)
	assert.Equal(t, 50, cfg.Inventory.ImportErrorLimit)
	assert.Equal(t, 1000, cfg.Inventory.JournalCapacity)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadFile_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  port: 9090
  read_timeout: 5s
inventory:
  seed_demo_data: true
  import_error_limit: 20
logging:
  level: debug
  format: console
`), 0o600))

	t.Setenv("API_PORT", "9191")
	t.Setenv("INVENTORY_JOURNAL_CAPACITY", "25")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.API.Port) // 環境変数が優先
	assert.Equal(t, 5*time.Second, cfg.API.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.API.IdleTimeout)
	assert.True(t, cfg.Inventory.SeedDemoData)
	assert.Equal(t, 20, cfg.Inventory.ImportErrorLimit)
	assert.Equal(t, 25, cfg.Inventory.JournalCapacity)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("api: [unclosed"), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)

	t.Setenv("LOG_LEVEL", "verbose")
	_, err = LoadFile("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.API.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Inventory.ImportErrorLimit = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
