package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8800", cfg.BaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.StatusInterval)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "base_url: https://argus.example.org\nlog_level: debug\nstatus_interval: 10s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://argus.example.org", cfg.BaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.StatusInterval)
	// Unset keys keep their defaults.
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		BaseURL:        "http://localhost:8800",
		StateDir:       ".argus",
		LogLevel:       "info",
		StatusInterval: time.Second,
		SyncInterval:   time.Minute,
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.BaseURL = "ftp://example.org"
	assert.Error(t, bad.Validate())

	bad = base
	bad.BaseURL = "not a url"
	assert.Error(t, bad.Validate())

	bad = base
	bad.LogLevel = "verbose"
	assert.Error(t, bad.Validate())

	bad = base
	bad.StatusInterval = 0
	assert.Error(t, bad.Validate())
}
