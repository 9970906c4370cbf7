package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	appLog "jarviscal/internal/log"
)

const (
	DefaultAPIURL         = "http://localhost:8000/api"
	DefaultListen         = "127.0.0.1:8080"
	DefaultRefresh        = "@every 30s"
	DefaultHorizonDays    = 30
	DefaultFirstHour      = 6
	DefaultLastHour       = 22
	DefaultRequestTimeout = 30
)

// Environment variables that override the file. NEXT_PUBLIC_API_URL is the
// name the web frontend used and is still honored.
const (
	EnvAPIURL       = "JARVIS_API_URL"
	EnvLegacyAPIURL = "NEXT_PUBLIC_API_URL"
	EnvTimezone     = "JARVIS_TIMEZONE"
)

// HoursConfig bounds the hour rows of the week grid (inclusive).
type HoursConfig struct {
	First int `yaml:"first" json:"first"`
	Last  int `yaml:"last" json:"last"`
}

// Config is the top-level application configuration.
type Config struct {
	// APIURL is the backend base URL including the API path segment.
	APIURL string `yaml:"api_url" json:"api_url"`

	// Timezone is the IANA zone used for all calendar math and display.
	// Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Listen is the address of the local week view server.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a cron spec (robfig/cron syntax, descriptors allowed)
	// for refreshing the served event list.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is how many days ahead the event list is fetched.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	Hours HoursConfig `yaml:"hours" json:"hours"`

	// RequestTimeoutSeconds bounds each HTTP request to the backend.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIURL:                DefaultAPIURL,
		Timezone:              "",
		Listen:                DefaultListen,
		RefreshCron:           DefaultRefresh,
		HorizonDays:           DefaultHorizonDays,
		Hours:                 HoursConfig{First: DefaultFirstHour, Last: DefaultLastHour},
		RequestTimeoutSeconds: DefaultRequestTimeout,
		LogLevel:              "info",
	}
}

// Normalize fills in missing or invalid values with defaults.
func (c *Config) Normalize() {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.Hours.First < 0 || c.Hours.First > 23 ||
		c.Hours.Last < 0 || c.Hours.Last > 23 ||
		c.Hours.Last < c.Hours.First ||
		(c.Hours.First == 0 && c.Hours.Last == 0) {
		c.Hours = HoursConfig{First: DefaultFirstHour, Last: DefaultLastHour}
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ApplyEnv overlays environment overrides on top of file values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	} else if v := getenv(EnvLegacyAPIURL); v != "" {
		c.APIURL = v
	}
	if v := getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	c.Normalize()
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Location resolves Timezone. An empty or unknown zone falls back to
// time.Local; unknown zones are logged.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", c.Timezone)
		return time.Local
	}
	return loc
}

// DefaultPath returns the per-user config location,
// e.g. ~/.config/jarviscal/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "jarviscal.yaml")
	}
	return filepath.Join(dir, "jarviscal", "config.yaml")
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If the file exists, it is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".jarviscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
