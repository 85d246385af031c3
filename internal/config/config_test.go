package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLoadDefaults builds a valid config with no file present.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, int64(64<<20), cfg.Server.MaxBodyBytes)
	require.Equal(t, 2, cfg.Analysis.Workers)
	require.Equal(t, 100, cfg.Analysis.ProgressEvery)
	require.Equal(t, "memory", cfg.DB.Backend)
	require.Equal(t, "none", cfg.Archive.Backend)
	require.True(t, cfg.Logging.Development)
}

// TestLoadFromFile overrides defaults with YAML values.
func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
server:
  port: 9090
analysis:
  workers: 4
  bot_sample_cap: 5
db:
  backend: postgres
  dsn: postgres://localhost/analyzer
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 4, cfg.Analysis.Workers)
	require.Equal(t, 5, cfg.Analysis.BotSampleCap)
	require.Equal(t, "postgres", cfg.DB.Backend)
}

// TestValidateRejectsBadValues enforces the guard rails.
func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Analysis.Workers = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.DB.Backend = "postgres"
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Auth.Enabled = true
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Analysis.RTMaxMs = 0
	bad.Analysis.RTMinMs = 10
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Archive.Backend = "s3"
	require.Error(t, bad.Validate())

	bad = cfg
	bad.PubSub.Enabled = true
	require.Error(t, bad.Validate())
}
