// Package config loads Titan-AAS configuration from the process
// environment, layered with an optional config file (TITAN_CONFIG_FILE)
// read via viper so operators can ship a base config and override any
// key with an env var without the loader caring which layer it came
// from.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvConfig reads typed values from environment variables under an
// optional prefix, falling back to an optional file-backed viper
// instance before the caller-supplied default.
type EnvConfig struct {
	prefix string
	file   *viper.Viper
}

// NewEnvConfig creates a loader that reads "{prefix}_{key}" variables.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

// NewEnvConfigWithFile creates a loader that also consults filePath
// (any format viper supports: yaml, json, toml) as a lower-priority
// source beneath environment variables. An unreadable or empty
// filePath disables the file layer rather than failing.
func NewEnvConfigWithFile(prefix, filePath string) *EnvConfig {
	ec := &EnvConfig{prefix: prefix}
	if filePath == "" {
		return ec
	}
	v := viper.New()
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err == nil {
		ec.file = v
	}
	return ec
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

func (ec *EnvConfig) fileString(key string) string {
	if ec.file == nil {
		return ""
	}
	return ec.file.GetString(key)
}

// GetString returns the variable's value, falling back to the config
// file and then defaultValue if unset.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		return value
	}
	if value := ec.fileString(key); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString returns the variable's value or panics if unset.
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

// GetInt returns the variable parsed as an int, or defaultValue.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	if ec.file != nil && ec.file.IsSet(key) {
		return ec.file.GetInt(key)
	}
	return defaultValue
}

// GetBool returns the variable parsed as a bool, or defaultValue.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	if ec.file != nil && ec.file.IsSet(key) {
		return ec.file.GetBool(key)
	}
	return defaultValue
}

// GetDuration returns the variable parsed with time.ParseDuration, or defaultValue.
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	if ec.file != nil && ec.file.IsSet(key) {
		return ec.file.GetDuration(key)
	}
	return defaultValue
}

// GetStringSlice splits a comma-separated variable, or returns defaultValue.
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(ec.buildKey(key))
	if value == "" {
		if ec.file != nil && ec.file.IsSet(key) {
			return ec.file.GetStringSlice(key)
		}
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validator accumulates field validation errors for a loaded configuration.
type Validator struct {
	errors []string
}

// NewValidator creates an empty validator.
func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

// RequireString records an error if value is empty.
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequirePositiveInt records an error if value is not > 0.
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireOneOf records an error if value is not in allowed.
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// Validate returns an aggregate error if any check failed.
func (v *Validator) Validate() error {
	if len(v.errors) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
}

// ServerConfig configures the Router's HTTP listener.
type ServerConfig struct {
	Port            int
	Host            string
	Debug           bool
	BodyLimit       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	RateLimit       float64
}

// TitanConfig is the process-environment configuration surface from spec §6.
type TitanConfig struct {
	Server ServerConfig

	StoreURL     string
	CacheURL     string
	EventLogURL  string
	EventLogPartitions int

	CacheEntityTTL time.Duration
	CacheListTTL   time.Duration

	MaxPageLimit int

	LeaseTTL    time.Duration
	LeaseRenew  time.Duration

	EventMaxRetries      int
	EventClaimTimeoutMs  int

	InlinePayloadThresholdBytes int
	RecursionDepthLimit         int

	ServiceName    string
	ServiceVersion string
	LogLevel       string
	LogFormat      string
}

// Load reads a TitanConfig from the environment under the "TITAN" prefix.
func Load() (*TitanConfig, error) {
	env := NewEnvConfigWithFile("TITAN", os.Getenv("TITAN_CONFIG_FILE"))

	cfg := &TitanConfig{
		Server: ServerConfig{
			Port:            env.GetInt("PORT", 8080),
			Host:            env.GetString("HOST", "0.0.0.0"),
			Debug:           env.GetBool("DEBUG", false),
			BodyLimit:       env.GetString("BODY_LIMIT", "10M"),
			ReadTimeout:     env.GetDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    env.GetDuration("WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: env.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  env.GetStringSlice("ALLOWED_ORIGINS", []string{"*"}),
			RateLimit:       0,
		},

		StoreURL:           env.GetString("STORE_URL", "postgres://localhost:5432/titan?sslmode=disable"),
		CacheURL:           env.GetString("CACHE_URL", "redis://localhost:6379/0"),
		EventLogURL:        env.GetString("EVENT_LOG_URL", "redis://localhost:6379/1"),
		EventLogPartitions: env.GetInt("EVENT_LOG_PARTITIONS", 4),

		CacheEntityTTL: time.Duration(env.GetInt("CACHE_ENTITY_TTL_S", 600)) * time.Second,
		CacheListTTL:   time.Duration(env.GetInt("CACHE_LIST_TTL_S", 60)) * time.Second,

		MaxPageLimit: env.GetInt("MAX_PAGE_LIMIT", 1000),

		LeaseTTL:   time.Duration(env.GetInt("LEASE_TTL_S", 30)) * time.Second,
		LeaseRenew: time.Duration(env.GetInt("LEASE_RENEW_S", 10)) * time.Second,

		EventMaxRetries:     env.GetInt("EVENT_MAX_RETRIES", 5),
		EventClaimTimeoutMs: env.GetInt("EVENT_CLAIM_TIMEOUT_MS", 30000),

		InlinePayloadThresholdBytes: env.GetInt("INLINE_PAYLOAD_THRESHOLD_BYTES", 64*1024),
		RecursionDepthLimit:         env.GetInt("RECURSION_DEPTH_LIMIT", 64),

		ServiceName:    env.GetString("SERVICE_NAME", "titan-aas"),
		ServiceVersion: env.GetString("SERVICE_VERSION", "0.1.0"),
		LogLevel:       env.GetString("LOG_LEVEL", "info"),
		LogFormat:      env.GetString("LOG_FORMAT", "text"),
	}

	v := NewValidator()
	v.RequireString("StoreURL", cfg.StoreURL)
	v.RequireString("CacheURL", cfg.CacheURL)
	v.RequireString("EventLogURL", cfg.EventLogURL)
	v.RequirePositiveInt("Server.Port", cfg.Server.Port)
	v.RequirePositiveInt("EventLogPartitions", cfg.EventLogPartitions)
	v.RequireOneOf("LogLevel", cfg.LogLevel, []string{"debug", "info", "warn", "error"})
	if err := v.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
