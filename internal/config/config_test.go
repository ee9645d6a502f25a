package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 250.0, cfg.Athlete.FTP)
	assert.Equal(t, 50.0, cfg.Athlete.RestingHR)
	assert.Equal(t, 185.0, cfg.Athlete.MaxHR)

	assert.Equal(t, 150*time.Millisecond, cfg.Scheduler.MinInterval)
	assert.Equal(t, 0.9, cfg.Scheduler.ThrottleFraction)
	assert.Equal(t, 5, cfg.Scheduler.MaxRetries)

	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, 200, cfg.Fetch.PageSize)
	assert.Equal(t, 100, cfg.Fetch.SessionLimit)

	// Strava credentials should be empty by default
	assert.Empty(t, cfg.Strava.ClientID)
	assert.Empty(t, cfg.Strava.ClientSecret)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
  "strava": {"client_id": "12345", "client_secret": "abc123secret"},
  "athlete": {"ftp": 280},
  "scheduler": {"min_interval": "250ms", "backoff_cap": "30s"},
  "fetch": {"concurrency": 8, "batch_delay": "500ms"}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "12345", cfg.Strava.ClientID)
	assert.Equal(t, 280.0, cfg.Athlete.FTP)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.MinInterval)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.BackoffCap)
	assert.Equal(t, 8, cfg.Fetch.Concurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.BatchDelay)

	// Values missing from the file fall back to defaults
	assert.Equal(t, 185.0, cfg.Athlete.MaxHR)
	assert.Equal(t, 200, cfg.Fetch.PageSize)
	assert.Equal(t, "https://www.strava.com/api/v3", cfg.Strava.BaseURL)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `{"strava": {"client_id": "12345", "client_secret": "s"}}`)
	t.Setenv("STRAVA_POWER_FETCH_CONCURRENCY", "2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Fetch.Concurrency)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestCreateExample(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, CreateExample())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "YOUR_CLIENT_ID", cfg.Strava.ClientID)

	// The example is a placeholder and must not validate
	assert.ErrorContains(t, cfg.Validate(), "client_id")
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Strava.ClientID = "12345"
		cfg.Strava.ClientSecret = "abc123secret"
		return cfg
	}

	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:        "empty client ID",
			mutate:      func(c *Config) { c.Strava.ClientID = "" },
			errContains: "client_id",
		},
		{
			name:        "placeholder client secret",
			mutate:      func(c *Config) { c.Strava.ClientSecret = "YOUR_CLIENT_SECRET" },
			errContains: "client_secret",
		},
		{
			name:        "zero ftp",
			mutate:      func(c *Config) { c.Athlete.FTP = 0 },
			errContains: "athlete.ftp",
		},
		{
			name:        "threshold above max hr",
			mutate:      func(c *Config) { c.Athlete.ThresholdHR = 190 },
			errContains: "threshold_hr",
		},
		{
			name:        "throttle fraction out of range",
			mutate:      func(c *Config) { c.Scheduler.ThrottleFraction = 1.5 },
			errContains: "throttle_fraction",
		},
		{
			name:        "zero concurrency",
			mutate:      func(c *Config) { c.Fetch.Concurrency = 0 },
			errContains: "fetch.concurrency",
		},
		{
			name:        "page size above upstream max",
			mutate:      func(c *Config) { c.Fetch.PageSize = 500 },
			errContains: "fetch.page_size",
		},
		{
			name:        "bad log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			errContains: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errContains)
		})
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Path = "/tmp/custom.db"
	path, err := cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", path)

	t.Setenv("HOME", "/home/rider")
	cfg.Database.Path = ""
	path, err = cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/rider", ".strava-power", "data.db"), path)
}
