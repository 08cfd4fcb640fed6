package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chtemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "./blobs", cfg.Blobstore.Root)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, int64(8192), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 30, cfg.Anthropic.RequestsPerMinute)
	assert.Equal(t, 300, cfg.Import.LeaseSecs)
	assert.Equal(t, 5*time.Minute, cfg.Import.Lease())
	assert.Equal(t, 3, cfg.Import.MaxAttempts)
	assert.Equal(t, 70, cfg.Import.LowConfidence)
	assert.InDelta(t, 0.85, cfg.Import.ReviewThreshold, 0.001)
	assert.InDelta(t, 0.55, cfg.Import.CandidateFloor, 0.001)
	assert.Equal(t, 5, cfg.Import.MaxCandidates)
	assert.Equal(t, 2, cfg.Import.Workers)
	assert.Equal(t, 2*time.Second, cfg.Import.PollInterval())
	assert.Equal(t, 30*time.Second, cfg.Import.MaxPollDelay())
	assert.Equal(t, time.Minute, cfg.Reaper.Interval())
	assert.Equal(t, 720*time.Hour, cfg.Reaper.Retention())
	assert.InDelta(t, 0.25, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.Equal(t, 500, cfg.Monitoring.ReviewBacklogThreshold)
	assert.Equal(t, 24, cfg.Monitoring.LookbackHours)
	assert.Equal(t, 5*time.Minute, cfg.Monitoring.CheckInterval())
}

func TestLoadFromYAML(t *testing.T) {
	chtemp(t)

	yaml := `
store:
  database_url: postgres://localhost/wastestream
log:
  level: debug
  format: console
import:
  lease_secs: 120
  workers: 4
reaper:
  retention_hours: 48
`
	dir, _ := os.Getwd()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/wastestream", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 2*time.Minute, cfg.Import.Lease())
	assert.Equal(t, 4, cfg.Import.Workers)
	assert.Equal(t, 48*time.Hour, cfg.Reaper.Retention())
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Import.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	chtemp(t)

	dir, _ := os.Getwd()
	yaml := "log:\n  level: info\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("WASTESTREAM_LOG_LEVEL", "warn")
	t.Setenv("WASTESTREAM_STORE_DATABASE_URL", "postgres://env/db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "postgres://env/db", cfg.Store.DatabaseURL)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Store.DatabaseURL = "postgres://localhost/wastestream"
		cfg.Anthropic.Key = "sk-test"
		cfg.Blobstore.Root = "./blobs"
		cfg.Import.ReviewThreshold = 0.85
		cfg.Import.CandidateFloor = 0.55
		return cfg
	}

	t.Run("db mode ok", func(t *testing.T) {
		assert.NoError(t, base().Validate("db"))
	})

	t.Run("db mode missing url", func(t *testing.T) {
		cfg := base()
		cfg.Store.DatabaseURL = ""
		assert.Error(t, cfg.Validate("db"))
	})

	t.Run("worker mode ok", func(t *testing.T) {
		assert.NoError(t, base().Validate("worker"))
	})

	t.Run("worker mode missing key", func(t *testing.T) {
		cfg := base()
		cfg.Anthropic.Key = ""
		assert.Error(t, cfg.Validate("worker"))
	})

	t.Run("threshold below floor", func(t *testing.T) {
		cfg := base()
		cfg.Import.ReviewThreshold = 0.4
		assert.Error(t, cfg.Validate("db"))
	})

	t.Run("unknown mode", func(t *testing.T) {
		assert.Error(t, base().Validate("bogus"))
	})
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level", Format: "json"}))
}
