package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"klinefetch/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	BaseURL     string
	IsTestnet   bool
	HTTPTimeout time.Duration // 0 disables the client-side timeout

	// Request Parameters
	Symbols  []string
	Interval string
	Limit    int

	// Runs
	Concurrency     int  // Max symbols fetched in parallel
	PingBeforeFetch bool // Probe the exchange before the first fetch

	// Output
	DBPath    string // Empty disables the SQLite sink
	OutputDir string // Empty writes CSV to stdout

	// Logging
	LogLevel logger.LogLevel
}

// fileConfig mirrors the optional YAML config file. Every key is optional;
// environment variables take precedence over file values.
type fileConfig struct {
	BaseURL            string   `yaml:"base_url"`
	Testnet            *bool    `yaml:"testnet"`
	HTTPTimeoutSeconds *int     `yaml:"http_timeout_seconds"`
	Symbols            []string `yaml:"symbols"`
	Interval           string   `yaml:"interval"`
	Limit              *int     `yaml:"limit"`
	Concurrency        *int     `yaml:"concurrency"`
	PingBeforeFetch    *bool    `yaml:"ping_before_fetch"`
	DBPath             string   `yaml:"db_path"`
	OutputDir          string   `yaml:"output_dir"`
	LogLevel           string   `yaml:"log_level"`
}

// ConfigFileEnv names the environment variable pointing at the YAML config file.
const ConfigFileEnv = "KLINES_CONFIG_FILE"

// LoadConfig loads configuration from an optional YAML file, the .env file
// and environment variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	fc := fileConfig{}
	if path := os.Getenv(ConfigFileEnv); path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		fc = *loaded
	}

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.BaseURL = getEnv("BINANCE_BASE_URL", fc.BaseURL)
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", derefBool(fc.Testnet, false))
	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		errs = append(errs, "BINANCE_BASE_URL must start with http:// or https://")
	}

	timeoutSeconds, err := getEnvAsIntRequired("HTTP_TIMEOUT_SECONDS", derefInt(fc.HTTPTimeoutSeconds, 10))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HTTP_TIMEOUT_SECONDS: %v", err))
	} else if timeoutSeconds < 0 {
		errs = append(errs, "HTTP_TIMEOUT_SECONDS cannot be negative")
	}
	cfg.HTTPTimeout = time.Duration(timeoutSeconds) * time.Second

	// Request Parameters
	cfg.Symbols = getEnvAsList("SYMBOLS", fc.Symbols)
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"ETHUSDT"}
	}

	cfg.Interval = getEnv("INTERVAL", orDefault(fc.Interval, "1h"))
	if strings.TrimSpace(cfg.Interval) == "" {
		errs = append(errs, "INTERVAL must be set")
	}

	cfg.Limit, err = getEnvAsIntRequired("LIMIT", derefInt(fc.Limit, 1000))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LIMIT: %v", err))
	} else if cfg.Limit <= 0 {
		errs = append(errs, "LIMIT must be positive")
	}

	// Runs
	cfg.Concurrency, err = getEnvAsIntRequired("CONCURRENCY", derefInt(fc.Concurrency, 4))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CONCURRENCY: %v", err))
	} else if cfg.Concurrency <= 0 {
		errs = append(errs, "CONCURRENCY must be positive")
	}
	cfg.PingBeforeFetch = getEnvAsBool("PING_BEFORE_FETCH", derefBool(fc.PingBeforeFetch, true))

	// Output
	cfg.DBPath = getEnv("DB_PATH", fc.DBPath)
	cfg.OutputDir = getEnv("OUTPUT_DIR", fc.OutputDir)

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", orDefault(fc.LogLevel, "INFO")))

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// loadFile reads the YAML config file, expanding ${VAR} references first.
func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var fc fileConfig
	if err := yaml.Unmarshal([]byte(expanded), &fc); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &fc, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

func orDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func derefInt(p *int, defaultValue int) int {
	if p == nil {
		return defaultValue
	}
	return *p
}

func derefBool(p *bool, defaultValue bool) bool {
	if p == nil {
		return defaultValue
	}
	return *p
}
