package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/mydehq/anitrack/internal/provider"
	"github.com/mydehq/anitrack/internal/types"
)

//go:embed default.yml
var defaultTemplate []byte

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the global anitrack configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`

	// Path is the file the config was read from, empty for defaults
	Path string `yaml:"-"`
}

type DatabaseConfig struct {
	Driver  string `yaml:"driver"`
	Path    string `yaml:"path"`
	DSN     string `yaml:"dsn"`
	Timeout int    `yaml:"timeout"`
}

type UpstreamConfig struct {
	Source    string  `yaml:"source"`
	BaseURL   string  `yaml:"base_url"`
	UserAgent string  `yaml:"user_agent"`
	RateLimit float64 `yaml:"rate_limit"`
	Timeout   int     `yaml:"timeout"`
}

type CacheConfig struct {
	PruneStaleEpisodes bool `yaml:"prune_stale_episodes"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:  DriverSQLite,
			Path:    "~/.cache/anitrack/anitrack.db",
			Timeout: 5,
		},
		Upstream: UpstreamConfig{
			Source:    "dataset",
			UserAgent: types.DefaultUserAgent,
			RateLimit: 2,
			Timeout:   30,
		},
		Cache: CacheConfig{PruneStaleEpisodes: false},
		Log:   LogConfig{Level: "info"},
	}
}

// Template returns the commented default config file
func Template() []byte {
	return append([]byte(nil), defaultTemplate...)
}

// Load reads the config at customPath, or the first file found in the
// standard locations, then applies ANITRACK_* environment overrides and
// validates the result. No file at all means defaults.
func Load(customPath string) (*Config, error) {
	cfg := Default()

	path := customPath
	if path == "" {
		path = FindPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config at %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, types.ErrConfigInvalid{Path: path, Reason: err.Error()}
		}
		cfg.Path = path
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UserPath returns the per-user config location
func UserPath() string {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, _ := os.UserHomeDir()
		if home == "" {
			return ""
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "anitrack", "config.yml")
}

// FindPath returns the first existing config file, or "" when there is none
func FindPath() string {
	if path := UserPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	etcPath := "/etc/anitrack/config.yml"
	if _, err := os.Stat(etcPath); err == nil {
		return etcPath
	}
	return ""
}

// ApplyEnv overrides fields from ANITRACK_* environment variables
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"ANITRACK_DB_DRIVER":           &c.Database.Driver,
		"ANITRACK_DB_PATH":             &c.Database.Path,
		"ANITRACK_DB_DSN":              &c.Database.DSN,
		"ANITRACK_UPSTREAM_SOURCE":     &c.Upstream.Source,
		"ANITRACK_UPSTREAM_BASE_URL":   &c.Upstream.BaseURL,
		"ANITRACK_UPSTREAM_USER_AGENT": &c.Upstream.UserAgent,
		"ANITRACK_LOG_LEVEL":           &c.Log.Level,
	}
	for key, field := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*field = v
		}
	}

	if v, ok := os.LookupEnv("ANITRACK_PRUNE_STALE_EPISODES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return types.ErrConfigInvalid{Reason: fmt.Sprintf("ANITRACK_PRUNE_STALE_EPISODES: %v", err)}
		}
		c.Cache.PruneStaleEpisodes = b
	}
	if v, ok := os.LookupEnv("ANITRACK_UPSTREAM_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return types.ErrConfigInvalid{Reason: fmt.Sprintf("ANITRACK_UPSTREAM_RATE_LIMIT: %v", err)}
		}
		c.Upstream.RateLimit = f
	}
	return nil
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return types.ErrConfigInvalid{Path: c.Path, Reason: fmt.Sprintf(format, args...)}
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return invalid("database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return invalid("database.dsn is required for postgres")
		}
	default:
		return invalid("unknown database.driver %q", c.Database.Driver)
	}
	if c.Database.Timeout <= 0 {
		return invalid("database.timeout must be positive")
	}

	if !provider.HasSource(c.Upstream.Source) {
		return invalid("unknown upstream.source %q (available: %s)",
			c.Upstream.Source, strings.Join(provider.ListSources(), ", "))
	}
	if c.Upstream.RateLimit <= 0 {
		return invalid("upstream.rate_limit must be positive")
	}
	if c.Upstream.Timeout <= 0 {
		return invalid("upstream.timeout must be positive")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return invalid("unknown log.level %q", c.Log.Level)
	}
	return nil
}

// DatabasePath returns database.path with a leading "~" expanded
func (c *Config) DatabasePath() (string, error) {
	path := c.Database.Path
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path, nil
}

// DatabaseTimeout returns the per-statement timeout
func (c *Config) DatabaseTimeout() time.Duration {
	return time.Duration(c.Database.Timeout) * time.Second
}

// UpstreamSettings converts the upstream section for a dataset source
func (c *Config) UpstreamSettings() types.UpstreamConfig {
	return types.UpstreamConfig{
		BaseURL:   c.Upstream.BaseURL,
		UserAgent: c.Upstream.UserAgent,
		RateLimit: c.Upstream.RateLimit,
		Timeout:   time.Duration(c.Upstream.Timeout) * time.Second,
	}
}

// LogLevel returns the parsed log level, defaulting to info
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Marshal renders the effective config as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
