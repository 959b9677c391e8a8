package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application settings. Account credentials live in the
// profile file handled by pkg/auth, not here.
type Config struct {
	// Remote API settings
	Gab GabConfig `yaml:"gab" json:"gab"`

	// Retry, backoff and pacing
	Transport TransportConfig `yaml:"transport" json:"transport"`

	// Collection defaults
	Collect CollectConfig `yaml:"collect" json:"collect"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// GabConfig holds remote API configuration
type GabConfig struct {
	BaseURL    string `yaml:"base_url" json:"base_url"`
	APIVersion string `yaml:"api_version" json:"api_version"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
}

// TransportConfig holds the retry policy of the HTTP transport
type TransportConfig struct {
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
	NotFoundBackoff    time.Duration `yaml:"not_found_backoff" json:"not_found_backoff"`
	ServerErrorBackoff time.Duration `yaml:"server_error_backoff" json:"server_error_backoff"`
	RateLimitBackoff   time.Duration `yaml:"rate_limit_backoff" json:"rate_limit_backoff"`
	// ConnectionErrors is the number of consecutive connection failures
	// tolerated before giving up (0 means DefaultConnectionErrors).
	ConnectionErrors int `yaml:"connection_errors" json:"connection_errors"`
	// HTTPErrors bounds retries of 404 and 5xx responses (0 means DefaultHTTPErrors).
	HTTPErrors        int `yaml:"http_errors" json:"http_errors"`
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// CollectConfig holds defaults for collection commands
type CollectConfig struct {
	Limit          int      `yaml:"limit" json:"limit"`
	Sort           string   `yaml:"sort" json:"sort"`
	LookbackSample int      `yaml:"lookback_sample" json:"lookback_sample"`
	FeaturedGroups []string `yaml:"featured_groups" json:"featured_groups"`
}

// OutputConfig holds output configuration
type OutputConfig struct {
	Path   string `yaml:"path" json:"path"`
	Format string `yaml:"format" json:"format"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

const (
	DefaultBaseURL          = "https://gab.com"
	DefaultConnectionErrors = 5
	DefaultHTTPErrors       = 10
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Gab: GabConfig{
			BaseURL:    DefaultBaseURL,
			APIVersion: "v1",
			UserAgent:  "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Transport: TransportConfig{
			Timeout:            30 * time.Second,
			NotFoundBackoff:    1 * time.Second,
			ServerErrorBackoff: 2 * time.Second,
			RateLimitBackoff:   60 * time.Second,
			ConnectionErrors:   DefaultConnectionErrors,
			HTTPErrors:         DefaultHTTPErrors,
			RequestsPerMinute:  0,
		},
		Collect: CollectConfig{
			Limit:          0,
			Sort:           "date",
			LookbackSample: 4,
		},
		Output: OutputConfig{
			Path:   "",
			Format: "json",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "garc.log",
		},
	}
}

// LoadFromEnv loads configuration from GARC_* environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("GARC_BASE_URL"); baseURL != "" {
		c.Gab.BaseURL = baseURL
	}
	if version := os.Getenv("GARC_API_VERSION"); version != "" {
		c.Gab.APIVersion = version
	}
	if userAgent := os.Getenv("GARC_USER_AGENT"); userAgent != "" {
		c.Gab.UserAgent = userAgent
	}

	var errs []error
	setInt := func(name string, target *int) {
		raw := os.Getenv(name)
		if raw == "" {
			return
		}
		val, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*target = val
	}
	setInt("GARC_CONNECTION_ERRORS", &c.Transport.ConnectionErrors)
	setInt("GARC_HTTP_ERRORS", &c.Transport.HTTPErrors)
	setInt("GARC_REQUESTS_PER_MINUTE", &c.Transport.RequestsPerMinute)
	setInt("GARC_LIMIT", &c.Collect.Limit)

	if output := os.Getenv("GARC_OUTPUT"); output != "" {
		c.Output.Path = output
	}
	if format := os.Getenv("GARC_FORMAT"); format != "" {
		c.Output.Format = format
	}
	if logLevel := os.Getenv("GARC_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("GARC_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a settings file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".garc.yaml",
		".garc.yml",
		filepath.Join(home, ".config", "garc", "config.yaml"),
		filepath.Join(home, ".garc.yaml"),
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

	if c.Gab.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	switch c.Gab.APIVersion {
	case "v1", "v2":
	default:
		errs = append(errs, fmt.Errorf("unsupported API version %q", c.Gab.APIVersion))
	}

	if c.Transport.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.Transport.NotFoundBackoff < 0 || c.Transport.ServerErrorBackoff < 0 || c.Transport.RateLimitBackoff < 0 {
		errs = append(errs, errors.New("backoff intervals cannot be negative"))
	}
	if c.Transport.ConnectionErrors < 0 {
		errs = append(errs, errors.New("connection errors cannot be negative"))
	}
	if c.Transport.HTTPErrors < 0 {
		errs = append(errs, errors.New("http errors cannot be negative"))
	}
	if c.Transport.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Collect.Limit < 0 {
		errs = append(errs, errors.New("limit cannot be negative"))
	}
	if c.Collect.LookbackSample < 1 {
		errs = append(errs, errors.New("lookback sample must be at least 1"))
	}

	validFormats := map[string]bool{"json": true, "csv": true, "sqlite": true}
	if !validFormats[strings.ToLower(c.Output.Format)] {
		errs = append(errs, fmt.Errorf("invalid output format %q", c.Output.Format))
	}
	if strings.ToLower(c.Output.Format) == "sqlite" && c.Output.Path == "" {
		errs = append(errs, errors.New("sqlite output requires an output path"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Flags carries command line overrides. Zero values mean "not set".
type Flags struct {
	ConnectionErrors *int
	HTTPErrors       *int
	Output           string
	Format           string
	Limit            *int
	Sort             string
	LogFile          string
	LogLevel         string
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags Flags) {
	if flags.ConnectionErrors != nil {
		c.Transport.ConnectionErrors = *flags.ConnectionErrors
	}
	if flags.HTTPErrors != nil {
		c.Transport.HTTPErrors = *flags.HTTPErrors
	}
	if flags.Output != "" {
		c.Output.Path = flags.Output
	}
	if flags.Format != "" {
		c.Output.Format = flags.Format
	}
	if flags.Limit != nil {
		c.Collect.Limit = *flags.Limit
	}
	if flags.Sort != "" {
		c.Collect.Sort = flags.Sort
	}
	if flags.LogFile != "" {
		c.Logging.File = flags.LogFile
	}
	if flags.LogLevel != "" {
		c.Logging.Level = flags.LogLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags Flags) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".garc.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
