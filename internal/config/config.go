package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Strava    StravaConfig    `mapstructure:"strava" json:"strava"`
	Athlete   AthleteConfig   `mapstructure:"athlete" json:"athlete"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" json:"scheduler"`
	Fetch     FetchConfig     `mapstructure:"fetch" json:"fetch"`
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Schedule  ScheduleConfig  `mapstructure:"schedule" json:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging"`
	Database  DatabaseConfig  `mapstructure:"database" json:"database"`
}

// StravaConfig holds Strava API credentials
type StravaConfig struct {
	ClientID     string `mapstructure:"client_id" json:"client_id"`
	ClientSecret string `mapstructure:"client_secret" json:"client_secret"`
	BaseURL      string `mapstructure:"base_url" json:"base_url"`
}

// AthleteConfig holds athlete-specific settings used for stress scoring
type AthleteConfig struct {
	FTP         float64 `mapstructure:"ftp" json:"ftp"`
	RestingHR   float64 `mapstructure:"resting_hr" json:"resting_hr"`
	MaxHR       float64 `mapstructure:"max_hr" json:"max_hr"`
	ThresholdHR float64 `mapstructure:"threshold_hr" json:"threshold_hr"`
}

// SchedulerConfig tunes the upstream request scheduler
type SchedulerConfig struct {
	MinInterval      time.Duration `mapstructure:"min_interval" json:"min_interval"`
	ThrottleFraction float64       `mapstructure:"throttle_fraction" json:"throttle_fraction"`
	MinResetWait     time.Duration `mapstructure:"min_reset_wait" json:"min_reset_wait"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap" json:"backoff_cap"`
	MaxRetries       int           `mapstructure:"max_retries" json:"max_retries"`
}

// FetchConfig tunes session paging and stream batches
type FetchConfig struct {
	Concurrency  int           `mapstructure:"concurrency" json:"concurrency"`
	PageSize     int           `mapstructure:"page_size" json:"page_size"`
	MaxPages     int           `mapstructure:"max_pages" json:"max_pages"`
	SessionLimit int           `mapstructure:"session_limit" json:"session_limit"`
	BatchDelay   time.Duration `mapstructure:"batch_delay" json:"batch_delay"`
}

// ServerConfig holds the read API listen address
type ServerConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

// ScheduleConfig holds cron expressions for background jobs
type ScheduleConfig struct {
	BatchCron string `mapstructure:"batch_cron" json:"batch_cron"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// DatabaseConfig holds the SQLite location; empty means ~/.strava-power/data.db
type DatabaseConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// envKeyReplacer maps nested keys like fetch.concurrency to STRAVA_POWER_FETCH_CONCURRENCY
var envKeyReplacer = strings.NewReplacer(".", "_")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Strava: StravaConfig{
			BaseURL: "https://www.strava.com/api/v3",
		},
		Athlete: AthleteConfig{
			FTP:         250,
			RestingHR:   50,
			MaxHR:       185,
			ThresholdHR: 165,
		},
		Scheduler: SchedulerConfig{
			MinInterval:      150 * time.Millisecond,
			ThrottleFraction: 0.9,
			MinResetWait:     5 * time.Second,
			BackoffCap:       60 * time.Second,
			MaxRetries:       5,
		},
		Fetch: FetchConfig{
			Concurrency:  4,
			PageSize:     200,
			MaxPages:     10,
			SessionLimit: 100,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8090",
		},
		Schedule: ScheduleConfig{
			BatchCron: "0 0 3 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// setDefaults mirrors DefaultConfig into viper so partial files still load
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("strava.base_url", d.Strava.BaseURL)

	v.SetDefault("athlete.ftp", d.Athlete.FTP)
	v.SetDefault("athlete.resting_hr", d.Athlete.RestingHR)
	v.SetDefault("athlete.max_hr", d.Athlete.MaxHR)
	v.SetDefault("athlete.threshold_hr", d.Athlete.ThresholdHR)

	v.SetDefault("scheduler.min_interval", d.Scheduler.MinInterval)
	v.SetDefault("scheduler.throttle_fraction", d.Scheduler.ThrottleFraction)
	v.SetDefault("scheduler.min_reset_wait", d.Scheduler.MinResetWait)
	v.SetDefault("scheduler.backoff_cap", d.Scheduler.BackoffCap)
	v.SetDefault("scheduler.max_retries", d.Scheduler.MaxRetries)

	v.SetDefault("fetch.concurrency", d.Fetch.Concurrency)
	v.SetDefault("fetch.page_size", d.Fetch.PageSize)
	v.SetDefault("fetch.max_pages", d.Fetch.MaxPages)
	v.SetDefault("fetch.session_limit", d.Fetch.SessionLimit)
	v.SetDefault("fetch.batch_delay", d.Fetch.BatchDelay)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("schedule.batch_cron", d.Schedule.BatchCron)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("database.path", "")
}

// Load reads the configuration from path, or ~/.strava-power/config.json when path is empty.
// Environment variables prefixed STRAVA_POWER_ override file values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := getConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNoConfig
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("STRAVA_POWER")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

const exampleConfig = `{
  "strava": {
    "client_id": "YOUR_CLIENT_ID",
    "client_secret": "YOUR_CLIENT_SECRET"
  },
  "athlete": {
    "ftp": 250,
    "resting_hr": 50,
    "max_hr": 185,
    "threshold_hr": 165
  },
  "fetch": {
    "concurrency": 4,
    "session_limit": 100,
    "batch_delay": "0s"
  },
  "logging": {
    "level": "info",
    "format": "text"
  }
}
`

// Validate checks if the config has required fields
func (c *Config) Validate() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}

	if c.Athlete.FTP <= 0 {
		return fmt.Errorf("athlete.ftp must be positive, got %v", c.Athlete.FTP)
	}
	if c.Athlete.ThresholdHR > 0 && c.Athlete.MaxHR > 0 && c.Athlete.ThresholdHR >= c.Athlete.MaxHR {
		return fmt.Errorf("athlete.threshold_hr (%v) must be less than athlete.max_hr (%v)", c.Athlete.ThresholdHR, c.Athlete.MaxHR)
	}

	if c.Scheduler.ThrottleFraction <= 0 || c.Scheduler.ThrottleFraction > 1 {
		return fmt.Errorf("scheduler.throttle_fraction must be in (0, 1], got %v", c.Scheduler.ThrottleFraction)
	}
	if c.Scheduler.MaxRetries < 0 {
		return fmt.Errorf("scheduler.max_retries must not be negative, got %d", c.Scheduler.MaxRetries)
	}

	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency must be at least 1, got %d", c.Fetch.Concurrency)
	}
	if c.Fetch.PageSize < 1 || c.Fetch.PageSize > 200 {
		return fmt.Errorf("fetch.page_size must be between 1 and 200, got %d", c.Fetch.PageSize)
	}
	if c.Fetch.SessionLimit < 1 {
		return fmt.Errorf("fetch.session_limit must be at least 1, got %d", c.Fetch.SessionLimit)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", c.Logging.Format)
	}

	return nil
}

// DatabasePath returns the configured SQLite path or the default under the config dir
func (c *Config) DatabasePath() (string, error) {
	if c.Database.Path != "" {
		return c.Database.Path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "data.db"), nil
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".strava-power"), nil
}
