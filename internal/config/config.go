package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for moodle-analytics
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Moodle    MoodleConfig    `yaml:"moodle"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Reporting ReportingConfig `yaml:"reporting"`
	Redis     RedisConfig     `yaml:"redis"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// MoodleConfig holds the web-service endpoint and credentials
type MoodleConfig struct {
	URL                string        `yaml:"url"`
	Token              string        `yaml:"token"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	Timeout            time.Duration `yaml:"timeout"`
	UserAgent          string        `yaml:"user_agent"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// AnalyticsConfig tunes the aggregation pipeline
type AnalyticsConfig struct {
	Concurrency         int           `yaml:"concurrency"`
	UserPageSize        int           `yaml:"user_page_size"`
	MaxUserPages        int           `yaml:"max_user_pages"`
	ActiveWindow        time.Duration `yaml:"active_window"`
	MaxCategoryDepth    int           `yaml:"max_category_depth"`
	TopCourses          int           `yaml:"top_courses"`
	ShortCoursePrefix   string        `yaml:"short_course_prefix"`
	ActivityLogFunction string        `yaml:"activity_log_function"`
}

// ReportingConfig holds the optional read-only connection to the Moodle database
type ReportingConfig struct {
	DSN            string        `yaml:"dsn"`
	TablePrefix    string        `yaml:"table_prefix"`
	MaxConns       int           `yaml:"max_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ActiveWindow   time.Duration `yaml:"active_window"`
}

// Enabled reports whether a reporting database is configured
func (c ReportingConfig) Enabled() bool {
	return c.DSN != ""
}

// RedisConfig holds Redis configuration for the statistics history
type RedisConfig struct {
	Address      string `yaml:"address"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	HistoryKey   string `yaml:"history_key"`
	HistoryLimit int    `yaml:"history_limit"`
}

// Enabled reports whether Redis is configured
func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

// SnapshotsConfig holds the snapshot recorder configuration
type SnapshotsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel parses the configured level, defaulting to info
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

var tablePrefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Default returns the built-in defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			RequestTimeout: 120 * time.Second,
		},
		Moodle: MoodleConfig{
			ConnectTimeout: 10 * time.Second,
			Timeout:        30 * time.Second,
			UserAgent:      "Moodle Analytics Dashboard/1.0",
		},
		Analytics: AnalyticsConfig{
			Concurrency:         8,
			UserPageSize:        1000,
			MaxUserPages:        100,
			ActiveWindow:        time.Hour,
			MaxCategoryDepth:    50,
			TopCourses:          5,
			ShortCoursePrefix:   "PDC-",
			ActivityLogFunction: "report_log_get_log_records",
		},
		Reporting: ReportingConfig{
			TablePrefix:    "mdl_",
			MaxConns:       5,
			ConnectTimeout: 5 * time.Second,
			ActiveWindow:   30 * 24 * time.Hour,
		},
		Redis: RedisConfig{
			HistoryKey:   "moodle-analytics:snapshots",
			HistoryLimit: 288,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from defaults, an optional YAML file and the environment.
// A .env file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)
	c.Server.RequestTimeout = getEnvAsDuration("SERVER_REQUEST_TIMEOUT", c.Server.RequestTimeout)

	c.Moodle.URL = getEnv("MOODLE_URL", c.Moodle.URL)
	c.Moodle.Token = getEnv("MOODLE_TOKEN", c.Moodle.Token)
	c.Moodle.ConnectTimeout = getEnvAsDuration("MOODLE_CONNECT_TIMEOUT", c.Moodle.ConnectTimeout)
	c.Moodle.Timeout = getEnvAsDuration("MOODLE_TIMEOUT", c.Moodle.Timeout)
	c.Moodle.UserAgent = getEnv("MOODLE_USER_AGENT", c.Moodle.UserAgent)
	c.Moodle.InsecureSkipVerify = getEnvAsBool("MOODLE_INSECURE_SKIP_VERIFY", c.Moodle.InsecureSkipVerify)

	c.Analytics.Concurrency = getEnvAsInt("ANALYTICS_CONCURRENCY", c.Analytics.Concurrency)
	c.Analytics.UserPageSize = getEnvAsInt("ANALYTICS_USER_PAGE_SIZE", c.Analytics.UserPageSize)
	c.Analytics.MaxUserPages = getEnvAsInt("ANALYTICS_MAX_USER_PAGES", c.Analytics.MaxUserPages)
	c.Analytics.ActiveWindow = getEnvAsDuration("ANALYTICS_ACTIVE_WINDOW", c.Analytics.ActiveWindow)
	c.Analytics.MaxCategoryDepth = getEnvAsInt("ANALYTICS_MAX_CATEGORY_DEPTH", c.Analytics.MaxCategoryDepth)
	c.Analytics.TopCourses = getEnvAsInt("ANALYTICS_TOP_COURSES", c.Analytics.TopCourses)
	c.Analytics.ShortCoursePrefix = getEnv("ANALYTICS_SHORT_COURSE_PREFIX", c.Analytics.ShortCoursePrefix)
	c.Analytics.ActivityLogFunction = getEnv("ANALYTICS_ACTIVITY_LOG_FUNCTION", c.Analytics.ActivityLogFunction)

	c.Reporting.DSN = getEnv("REPORTING_DSN", c.Reporting.DSN)
	c.Reporting.TablePrefix = getEnv("REPORTING_TABLE_PREFIX", c.Reporting.TablePrefix)
	c.Reporting.MaxConns = getEnvAsInt("REPORTING_MAX_CONNS", c.Reporting.MaxConns)
	c.Reporting.ConnectTimeout = getEnvAsDuration("REPORTING_CONNECT_TIMEOUT", c.Reporting.ConnectTimeout)
	c.Reporting.ActiveWindow = getEnvAsDuration("REPORTING_ACTIVE_WINDOW", c.Reporting.ActiveWindow)

	c.Redis.Address = getEnv("REDIS_ADDRESS", c.Redis.Address)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.HistoryKey = getEnv("REDIS_HISTORY_KEY", c.Redis.HistoryKey)
	c.Redis.HistoryLimit = getEnvAsInt("REDIS_HISTORY_LIMIT", c.Redis.HistoryLimit)

	c.Snapshots.Interval = getEnvAsDuration("SNAPSHOT_INTERVAL", c.Snapshots.Interval)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Moodle.URL == "" {
		return fmt.Errorf("moodle URL is required")
	}
	u, err := url.Parse(c.Moodle.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid moodle URL: %q", c.Moodle.URL)
	}

	if c.Moodle.Token == "" {
		return fmt.Errorf("moodle token is required")
	}

	if c.Moodle.ConnectTimeout <= 0 || c.Moodle.ConnectTimeout > 10*time.Second {
		return fmt.Errorf("moodle connect timeout must be between 0 and 10s, got %s", c.Moodle.ConnectTimeout)
	}

	if c.Moodle.Timeout <= 0 || c.Moodle.Timeout > 30*time.Second {
		return fmt.Errorf("moodle timeout must be between 0 and 30s, got %s", c.Moodle.Timeout)
	}

	if c.Analytics.Concurrency < 1 {
		return fmt.Errorf("analytics concurrency must be positive: %d", c.Analytics.Concurrency)
	}

	if c.Analytics.UserPageSize < 1 || c.Analytics.MaxUserPages < 1 {
		return fmt.Errorf("user paging must be positive: page size %d, max pages %d",
			c.Analytics.UserPageSize, c.Analytics.MaxUserPages)
	}

	if c.Analytics.MaxCategoryDepth < 1 {
		return fmt.Errorf("max category depth must be positive: %d", c.Analytics.MaxCategoryDepth)
	}

	if !tablePrefixPattern.MatchString(c.Reporting.TablePrefix) {
		return fmt.Errorf("invalid reporting table prefix: %q", c.Reporting.TablePrefix)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
