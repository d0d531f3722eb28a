package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Feed      FeedConfig      `yaml:"feed"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Enroll    EnrollConfig    `yaml:"enroll"`
	Login     LoginConfig     `yaml:"login"`
	Log       LogConfig       `yaml:"log"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local console server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// BackendConfig points at the attendance backend HTTP API
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	// RequestTimeout of zero means requests never time out.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// FeedConfig represents the live check-in feed settings
type FeedConfig struct {
	Enabled bool `yaml:"enabled"`
	// URL overrides the address derived from the backend base URL.
	URL             string        `yaml:"url,omitempty"`
	ReconnectDelay  time.Duration `yaml:"reconnect_delay"`
	ReconnectJitter time.Duration `yaml:"reconnect_jitter"`
	PingInterval    time.Duration `yaml:"ping_interval"`
}

// DashboardConfig represents the attendance dashboard settings
type DashboardConfig struct {
	NoticeTTL time.Duration `yaml:"notice_ttl"`
	// Dedupe drops feed records already present by student and time.
	Dedupe bool `yaml:"dedupe"`
	Sound  bool `yaml:"sound"`
}

// EnrollConfig represents the enrollment wizard settings
type EnrollConfig struct {
	CompletionPromptDelay time.Duration `yaml:"completion_prompt_delay"`
}

// LoginConfig represents the login page settings
type LoginConfig struct {
	RedirectDelay time.Duration `yaml:"redirect_delay"`
}

// LogConfig represents logger settings
type LogConfig struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"` // dev|prod
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8090,
			Host: "127.0.0.1",
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
		},
		Feed: FeedConfig{
			Enabled:         true,
			ReconnectDelay:  3 * time.Second,
			ReconnectJitter: 0,
			PingInterval:    30 * time.Second,
		},
		Dashboard: DashboardConfig{
			NoticeTTL: 3 * time.Second,
			Sound:     true,
		},
		Enroll: EnrollConfig{
			CompletionPromptDelay: 2 * time.Second,
		},
		Login: LoginConfig{
			RedirectDelay: 1500 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
			Env:   "dev",
		},
	}
}

// searchPaths are tried in order when no explicit path is given
var searchPaths = []string{
	"config.yaml",
	"configs/config.yaml",
	"/etc/attendconsole/config.yaml",
}

// Load loads configuration from path, or from the first config file found in
// the common locations when path is empty. Environment overrides are applied
// on top of the file.
func Load(path string) (*Config, error) {
	configPaths := searchPaths
	if path != "" {
		configPaths = []string{path}
	}

	var data []byte
	var err error
	var loadedPath string

	for _, p := range configPaths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", loadedPath, err)
	}

	cfg.ConfigPath = loadedPath
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadOrDefault is Load, falling back to Default with environment overrides
// when no config file exists. The bool reports whether the fallback was used.
// A file that exists but does not parse or validate is an error, as is an
// invalid environment override on the fallback path.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	cfg = Default()
	cfg.ConfigPath = "config.yaml"
	if path != "" {
		cfg.ConfigPath = path
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, true, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// LoadDotEnv reads a .env file into the process environment if one exists.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from ATTEND_* environment variables.
func (c *Config) ApplyEnv() error {
	c.Backend.BaseURL = getenv("ATTEND_BACKEND_URL", c.Backend.BaseURL)
	c.Feed.URL = getenv("ATTEND_FEED_URL", c.Feed.URL)
	c.Log.Level = getenv("ATTEND_LOG_LEVEL", c.Log.Level)
	c.Log.Env = getenv("ATTEND_ENV", c.Log.Env)

	if v := os.Getenv("ATTEND_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ATTEND_PORT: %w", err)
		}
		c.Server.Port = port
	}

	var err error
	if c.Feed.ReconnectDelay, err = durationEnv("ATTEND_RECONNECT_DELAY", c.Feed.ReconnectDelay); err != nil {
		return err
	}
	if c.Feed.ReconnectJitter, err = durationEnv("ATTEND_RECONNECT_JITTER", c.Feed.ReconnectJitter); err != nil {
		return err
	}
	return nil
}

// Validate checks the settings that would otherwise fail late
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("backend.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.base_url: unsupported scheme %q", u.Scheme)
	}
	if c.Feed.ReconnectDelay <= 0 {
		return fmt.Errorf("feed.reconnect_delay must be positive")
	}
	if c.Feed.ReconnectJitter < 0 {
		return fmt.Errorf("feed.reconnect_jitter must not be negative")
	}
	return nil
}

// FeedURL returns the live feed address. Without an explicit override it is
// the backend base URL with the scheme upgraded to ws/wss and the path
// /ws/attendance.
func (c *Config) FeedURL() (string, error) {
	if c.Feed.URL != "" {
		return c.Feed.URL, nil
	}

	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("cannot derive feed url from scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/attendance"
	u.RawQuery = ""
	return u.String(), nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
