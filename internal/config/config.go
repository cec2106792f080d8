// Package config loads vktop settings from defaults, a YAML file, .env files,
// VKTOP_* environment variables and command line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/Sternrassler/vktop/pkg/logging"
	"github.com/Sternrassler/vktop/pkg/pagination"
	"github.com/Sternrassler/vktop/pkg/vkapi"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options of vktop
type Config struct {
	API     APIConfig     `yaml:"api"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Retry   RetryConfig   `yaml:"retry"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// APIConfig holds VK API access settings
type APIConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Version           string        `yaml:"version"`
	AccessToken       string        `yaml:"access_token"`
	Lang              string        `yaml:"lang"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// FetchConfig holds parallel fetch settings
type FetchConfig struct {
	Workers int `yaml:"workers"`
}

// RetryConfig holds rate-limit retry settings
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier"`
}

// RedisConfig enables the shared cooldown tracker when Addr is set
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// MetricsConfig enables the /metrics endpoint when Addr is set
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	retry := vkapi.DefaultRetryConfig()
	return &Config{
		API: APIConfig{
			BaseURL:           vkapi.DefaultBaseURL,
			Version:           vkapi.DefaultVersion,
			Lang:              "en",
			Timeout:           15 * time.Second,
			RequestsPerSecond: vkapi.DefaultRequestsPerSecond,
		},
		Fetch: FetchConfig{
			Workers: runtime.NumCPU(),
		},
		Retry: RetryConfig{
			MaxAttempts:    retry.MaxAttempts,
			InitialBackoff: retry.InitialBackoff,
			MaxBackoff:     retry.MaxBackoff,
			Multiplier:     retry.BackoffMultiplier,
		},
		Redis: RedisConfig{
			Cooldown: time.Second,
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelWarn),
		},
	}
}

// Environment variables read by LoadFromEnv.
const (
	EnvAccessToken       = "VKTOP_ACCESS_TOKEN"
	EnvAPIBaseURL        = "VKTOP_API_BASE_URL"
	EnvAPIVersion        = "VKTOP_API_VERSION"
	EnvLang              = "VKTOP_LANG"
	EnvRequestsPerSecond = "VKTOP_REQUESTS_PER_SECOND"
	EnvWorkers           = "VKTOP_WORKERS"
	EnvRedisAddr         = "VKTOP_REDIS_ADDR"
	EnvRedisPassword     = "VKTOP_REDIS_PASSWORD"
	EnvLogLevel          = "VKTOP_LOG_LEVEL"
	EnvMetricsAddr       = "VKTOP_METRICS_ADDR"
)

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(EnvAccessToken, &c.API.AccessToken)
	setString(EnvAPIBaseURL, &c.API.BaseURL)
	setString(EnvAPIVersion, &c.API.Version)
	setString(EnvLang, &c.API.Lang)
	setString(EnvRedisAddr, &c.Redis.Addr)
	setString(EnvRedisPassword, &c.Redis.Password)
	setString(EnvLogLevel, &c.Logging.Level)
	setString(EnvMetricsAddr, &c.Metrics.Addr)

	if v := os.Getenv(EnvRequestsPerSecond); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvRequestsPerSecond, err))
		} else {
			c.API.RequestsPerSecond = rps
		}
	}

	if v := os.Getenv(EnvWorkers); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", EnvWorkers, err))
		} else {
			c.Fetch.Workers = workers
		}
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".vktop.yaml",
		".vktop.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "vktop", "config.yaml"),
			filepath.Join(home, ".config", "vktop", "config.yml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api base url is required"))
	}
	if c.API.Version == "" {
		errs = append(errs, errors.New("api version is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api timeout must be positive"))
	}
	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests per second cannot be negative"))
	}

	if c.Fetch.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.InitialBackoff <= 0 {
		errs = append(errs, errors.New("retry initial backoff must be positive"))
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		errs = append(errs, errors.New("retry max backoff must not be below the initial backoff"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.Redis.Addr != "" && c.Redis.Cooldown <= 0 {
		errs = append(errs, errors.New("redis cooldown must be positive"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Overrides are values given on the command line. Zero values are unset.
type Overrides struct {
	AccessToken string
	Workers     int
	LogLevel    string
	PrettyLogs  bool
	MetricsAddr string
	RedisAddr   string
}

// Apply merges command line overrides into the configuration
func (c *Config) Apply(o Overrides) {
	if o.AccessToken != "" {
		c.API.AccessToken = o.AccessToken
	}
	if o.Workers != 0 {
		c.Fetch.Workers = o.Workers
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.PrettyLogs {
		c.Logging.Pretty = true
	}
	if o.MetricsAddr != "" {
		c.Metrics.Addr = o.MetricsAddr
	}
	if o.RedisAddr != "" {
		c.Redis.Addr = o.RedisAddr
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, o Overrides) (*Config, error) {
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".vktop.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.Apply(o)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// ClientConfig returns the VK API client settings.
func (c *Config) ClientConfig() vkapi.Config {
	cfg := vkapi.DefaultConfig(c.API.AccessToken)
	cfg.BaseURL = c.API.BaseURL
	cfg.Version = c.API.Version
	cfg.Lang = c.API.Lang
	cfg.Timeout = c.API.Timeout
	cfg.RequestsPerSecond = c.API.RequestsPerSecond
	cfg.Retry = vkapi.RetryConfig{
		MaxAttempts:       c.Retry.MaxAttempts,
		InitialBackoff:    c.Retry.InitialBackoff,
		MaxBackoff:        c.Retry.MaxBackoff,
		BackoffMultiplier: c.Retry.Multiplier,
	}
	return cfg
}

// PaginationConfig returns the batch fetcher settings.
func (c *Config) PaginationConfig() pagination.Config {
	cfg := pagination.DefaultConfig()
	cfg.MaxConcurrency = c.Fetch.Workers
	return cfg
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	return cfg
}
