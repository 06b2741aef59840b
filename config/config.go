// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment the server runs in
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// String returns the short environment name
func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment maps an ENV value, including the long aliases, to an Environment
func ParseEnvironment(raw string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", raw)
}

// DefaultRxNavBaseURL is the public NLM RxNav REST endpoint
const DefaultRxNavBaseURL = "https://rxnav.nlm.nih.gov/REST"

// DefaultRxNavUserAgent identifies this service to RxNav
const DefaultRxNavUserAgent = "rxnorm-search-api"

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	RxNavBaseURL       string
	RxNavTimeout       time.Duration
	RxNavMaxRetries    int
	RxNavRatePerSecond int
	RxNavUserAgent     string

	CacheTTL           time.Duration
	CacheCapacity      int
	CacheSweepInterval time.Duration
	ProbeInterval      time.Duration

	IncludeSuppressed bool
	AllowedOrigins    []string
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		RxNavBaseURL:       strings.TrimRight(getEnvWithDefault("RXNAV_BASE_URL", DefaultRxNavBaseURL), "/"),
		RxNavTimeout:       time.Duration(getIntEnvWithDefault("RXNAV_TIMEOUT_SECONDS", 10)) * time.Second,
		RxNavMaxRetries:    getIntEnvWithDefault("RXNAV_MAX_RETRIES", 2),
		RxNavRatePerSecond: getIntEnvWithDefault("RXNAV_RATE_PER_SECOND", 15),
		RxNavUserAgent:     strings.TrimSpace(getEnvWithDefault("RXNAV_USER_AGENT", DefaultRxNavUserAgent)),

		CacheTTL:           time.Duration(getIntEnvWithDefault("CACHE_TTL_MINUTES", 60)) * time.Minute,
		CacheCapacity:      getIntEnvWithDefault("CACHE_CAPACITY", 1000),
		CacheSweepInterval: time.Duration(getIntEnvWithDefault("CACHE_SWEEP_MINUTES", 10)) * time.Minute,
		ProbeInterval:      time.Duration(getIntEnvWithDefault("PROBE_INTERVAL_MINUTES", 5)) * time.Minute,

		IncludeSuppressed: getBoolEnvWithDefault("INCLUDE_SUPPRESSED", false),
		AllowedOrigins:    getListEnvWithDefault("ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validateBaseURL(cfg.RxNavBaseURL); err != nil {
		return fmt.Errorf("invalid RXNAV_BASE_URL: %w", err)
	}

	if err := validateRange(int(cfg.RxNavTimeout/time.Second), 1, 120, "RXNAV_TIMEOUT_SECONDS"); err != nil {
		return fmt.Errorf("invalid RXNAV_TIMEOUT_SECONDS: %w", err)
	}

	if err := validateRange(cfg.RxNavMaxRetries, 0, 10, "RXNAV_MAX_RETRIES"); err != nil {
		return fmt.Errorf("invalid RXNAV_MAX_RETRIES: %w", err)
	}

	// RxNav asks clients to stay under 20 requests per second
	if err := validateRange(cfg.RxNavRatePerSecond, 1, 20, "RXNAV_RATE_PER_SECOND"); err != nil {
		return fmt.Errorf("invalid RXNAV_RATE_PER_SECOND: %w", err)
	}

	if err := validateRange(int(cfg.CacheTTL/time.Minute), 1, 24*60, "CACHE_TTL_MINUTES"); err != nil {
		return fmt.Errorf("invalid CACHE_TTL_MINUTES: %w", err)
	}

	if err := validateRange(cfg.CacheCapacity, 1, 1000000, "CACHE_CAPACITY"); err != nil {
		return fmt.Errorf("invalid CACHE_CAPACITY: %w", err)
	}

	if err := validateRange(int(cfg.CacheSweepInterval/time.Minute), 1, 24*60, "CACHE_SWEEP_MINUTES"); err != nil {
		return fmt.Errorf("invalid CACHE_SWEEP_MINUTES: %w", err)
	}

	if err := validateRange(int(cfg.ProbeInterval/time.Minute), 1, 24*60, "PROBE_INTERVAL_MINUTES"); err != nil {
		return fmt.Errorf("invalid PROBE_INTERVAL_MINUTES: %w", err)
	}

	if len(cfg.AllowedOrigins) == 0 {
		return fmt.Errorf("invalid ALLOWED_ORIGINS: at least one origin is required")
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" || address == "0.0.0.0" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env Environment) error {
	if env == "" {
		return fmt.Errorf("ENV cannot be empty")
	}

	validEnvs := []Environment{EnvDevelopment, EnvStaging, EnvProduction, EnvTest}
	for _, validEnv := range validEnvs {
		if env == validEnv {
			return nil
		}
	}

	return fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateBaseURL validates the RXNAV_BASE_URL environment variable
func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("RXNAV_BASE_URL must be a valid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("RXNAV_BASE_URL must use http or https, got: %q", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("RXNAV_BASE_URL must include a host, got: %s", raw)
	}

	return nil
}

// validateRange checks that an integer setting is within [min, max]
func validateRange(value, minValue, maxValue int, configName string) error {
	if value < minValue || value > maxValue {
		return fmt.Errorf("%s must be between %d and %d, got: %d", configName, minValue, maxValue, value)
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnvWithDefault gets an environment variable as bool with a default value
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getListEnvWithDefault splits a comma separated variable, dropping blank entries
func getListEnvWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"RXNAV_BASE_URL",
		"RXNAV_TIMEOUT_SECONDS",
		"RXNAV_MAX_RETRIES",
		"RXNAV_RATE_PER_SECOND",
		"RXNAV_USER_AGENT",
		"CACHE_TTL_MINUTES",
		"CACHE_CAPACITY",
		"CACHE_SWEEP_MINUTES",
		"PROBE_INTERVAL_MINUTES",
		"INCLUDE_SUPPRESSED",
		"ALLOWED_ORIGINS",
	}
}
