package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the application configuration, loaded default -> TOML file(s)
// -> environment variables, in that order (later sources override earlier
// ones). The environment variables named in spec §6 (DATABASE_URL, PORT,
// TEST_URL, TEST_RUN_ID) always win: they are applied last, after any TOML
// file, exactly as the teacher's env overrides win over its own config
// files.
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Database    DatabaseConfig  `toml:"database"`
	Artifacts   ArtifactsConfig `toml:"artifacts"`
	Browser     BrowserConfig   `toml:"browser"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`

	// TestURL holds TEST_URL (spec §6). The batch command reads it as the
	// path of the URL-list file when no file argument is given; it is not
	// used as a single target URL.
	TestURL string `toml:"-"`
	// TestRunID attributes a worker's measurement to an existing run; zero
	// means "no run context supplied, create one" (spec §6, §9).
	TestRunID int `toml:"-"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DatabaseConfig holds the relational store's connection string. URL is
// always populated from the DATABASE_URL environment variable; it is
// deliberately not a TOML field since spec §6 treats it as a secret-ish,
// environment-supplied setting whose absence must refuse startup.
type DatabaseConfig struct {
	URL string `toml:"-"`
}

type ArtifactsConfig struct {
	// Root is the directory under which test-history/<dirname>/ is created.
	Root string `toml:"root"`
}

type BrowserConfig struct {
	PoolSize          int           `toml:"pool_size"`
	Headless          bool          `toml:"headless"`
	UserAgent         string        `toml:"user_agent"`
	NavigationTimeout time.Duration `toml:"navigation_timeout"`
	LoadTimeout       time.Duration `toml:"load_timeout"`
	SettleDelay       time.Duration `toml:"settle_delay"`
	ScrollIncrementPx int           `toml:"scroll_increment_px"`
	ScrollInterval    time.Duration `toml:"scroll_interval"`
	ScrollSettleDelay time.Duration `toml:"scroll_settle_delay"`
	ScrollReturnDelay time.Duration `toml:"scroll_return_delay"`
}

type SchedulerConfig struct {
	DefaultWorkers int           `toml:"default_workers"`
	JobDeadline    time.Duration `toml:"job_deadline"`
	ShutdownGrace  time.Duration `toml:"shutdown_grace"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`
	Output []string `toml:"output"`
}

// NewDefaultConfig returns the configuration defaults, overridden first by
// any TOML file and finally by environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Artifacts: ArtifactsConfig{
			Root: "test-history",
		},
		Browser: BrowserConfig{
			PoolSize:          4,
			Headless:          true,
			UserAgent:         "Pumpkin-Perf/1.0",
			NavigationTimeout: 60 * time.Second,
			LoadTimeout:       60 * time.Second,
			SettleDelay:       2 * time.Second,
			ScrollIncrementPx: 100,
			ScrollInterval:    100 * time.Millisecond,
			ScrollSettleDelay: 1 * time.Second,
			ScrollReturnDelay: 500 * time.Millisecond,
		},
		Scheduler: SchedulerConfig{
			DefaultWorkers: 4,
			JobDeadline:    120 * time.Second,
			ShutdownGrace:  5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from default -> file1 -> ... -> fileN
// -> environment variables, in that order. Files are optional; a missing
// path is skipped rather than an error (mirrors the teacher's
// auto-discovery of quaero.toml).
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies the spec §6 environment variables. DATABASE_URL
// is required: its absence is a startup-refusing error naming the variable
// (spec §7 "Missing env").
func applyEnvOverrides(config *Config) error {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return fmt.Errorf("required environment variable DATABASE_URL is not set")
	}
	config.Database.URL = dbURL

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid PORT environment variable %q: %w", portStr, err)
		}
		config.Server.Port = port
	}

	config.TestURL = os.Getenv("TEST_URL")

	if runIDStr := os.Getenv("TEST_RUN_ID"); runIDStr != "" {
		runID, err := strconv.Atoi(runIDStr)
		if err != nil {
			return fmt.Errorf("invalid TEST_RUN_ID environment variable %q: %w", runIDStr, err)
		}
		config.TestRunID = runID
	}

	return nil
}

// ApplyFlagOverrides applies command-line flag overrides, which take
// priority over both TOML files and environment variables.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
