// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with INFERGATE_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Parameters:
//   - configPath: Path to the configuration file or directory
//
// Returns:
//   - *Bootstrap: Loaded configuration
//   - error: Configuration loading or validation error
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Enable environment variable support with INFERGATE_ prefix
	v.SetEnvPrefix("INFERGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without INFERGATE_ prefix) for compatibility
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "INFERGATE_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "INFERGATE_DATA_REDIS_ADDR")
	_ = v.BindEnv("health.alert_webhook_url", "ALERT_WEBHOOK_URL", "INFERGATE_HEALTH_ALERT_WEBHOOK_URL")

	// Load configuration file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Parse structured sections (provider list, model registry, fallback chains)
	var providers []*Provider
	if err := v.UnmarshalKey("resilience.providers", &providers); err != nil {
		return nil, fmt.Errorf("failed to parse resilience.providers: %w", err)
	}

	var models []*ModelEntry
	if err := v.UnmarshalKey("selection.models", &models); err != nil {
		return nil, fmt.Errorf("failed to parse selection.models: %w", err)
	}

	fallbackChains := map[string][]string{}
	if err := v.UnmarshalKey("resilience.fallback_chains", &fallbackChains); err != nil {
		return nil, fmt.Errorf("failed to parse resilience.fallback_chains: %w", err)
	}

	// Parse configuration into Bootstrap structure
	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
		},
		Data: &Data{
			Database: &Data_Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
		},
		Resilience: &Resilience{
			Retry: &Resilience_Retry{
				MaxRetries:        v.GetInt("resilience.retry.max_retries"),
				BaseDelayMs:       v.GetInt("resilience.retry.base_delay_ms"),
				BackoffMultiplier: v.GetFloat64("resilience.retry.backoff_multiplier"),
				Jitter:            v.GetBool("resilience.retry.jitter"),
				MaxDelayMs:        v.GetInt("resilience.retry.max_delay_ms"),
			},
			CircuitBreaker: &Resilience_CircuitBreaker{
				TimeoutSeconds:             v.GetInt("resilience.circuit_breaker.timeout_seconds"),
				FailureRateThreshold:       v.GetFloat64("resilience.circuit_breaker.failure_rate_threshold"),
				MinSamples:                 v.GetInt("resilience.circuit_breaker.min_samples"),
				RecentFailureLimit:         v.GetInt("resilience.circuit_breaker.recent_failure_limit"),
				RecentFailureWindowSeconds: v.GetInt("resilience.circuit_breaker.recent_failure_window_seconds"),
			},
			FallbackChains:     fallbackChains,
			Providers:          providers,
			DegradationEnabled: v.GetBool("resilience.degradation_enabled"),
		},
		Selection: &Selection{
			Models:          models,
			CacheTTLSeconds: v.GetInt("selection.cache_ttl_seconds"),
		},
		Health: &Health{
			CheckIntervalSeconds: v.GetInt("health.check_interval_seconds"),
			MaxErrorRate:         v.GetFloat64("health.max_error_rate"),
			MaxResponseTimeMs:    v.GetInt("health.max_response_time_ms"),
			MinAvailability:      v.GetFloat64("health.min_availability"),
			VerdictTTLSeconds:    v.GetInt("health.verdict_ttl_seconds"),
			AlertWebhookUrl:      v.GetString("health.alert_webhook_url"),
			AlertRecipients:      v.GetStringSlice("health.alert_recipients"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	// Validate required fields
	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 5*time.Minute)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// Retry defaults: 3 retries, 1s base delay, doubling, jittered, 30s cap
	v.SetDefault("resilience.retry.max_retries", 3)
	v.SetDefault("resilience.retry.base_delay_ms", 1000)
	v.SetDefault("resilience.retry.backoff_multiplier", 2.0)
	v.SetDefault("resilience.retry.jitter", true)
	v.SetDefault("resilience.retry.max_delay_ms", 30000)

	// Circuit breaker defaults: 50% failure ratio over 10+ samples,
	// or 5 failures within 5 minutes, opens for 300s
	v.SetDefault("resilience.circuit_breaker.timeout_seconds", 300)
	v.SetDefault("resilience.circuit_breaker.failure_rate_threshold", 0.5)
	v.SetDefault("resilience.circuit_breaker.min_samples", 10)
	v.SetDefault("resilience.circuit_breaker.recent_failure_limit", 5)
	v.SetDefault("resilience.circuit_breaker.recent_failure_window_seconds", 300)

	v.SetDefault("resilience.degradation_enabled", true)

	// Selection defaults
	v.SetDefault("selection.cache_ttl_seconds", 300)

	// Health monitor defaults
	v.SetDefault("health.check_interval_seconds", 60)
	v.SetDefault("health.max_error_rate", 0.1)
	v.SetDefault("health.max_response_time_ms", 10000)
	v.SetDefault("health.min_availability", 0.95)
	v.SetDefault("health.verdict_ttl_seconds", 30)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	// Check required database configuration
	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	if bc.Resilience == nil || len(bc.Resilience.FallbackChains) == 0 {
		missingFields = append(missingFields, "resilience.fallback_chains")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	// Every provider named in a fallback chain must be declared
	declared := map[string]bool{}
	for _, p := range bc.Resilience.Providers {
		declared[p.Name] = true
	}
	for opType, chain := range bc.Resilience.FallbackChains {
		for _, name := range chain {
			if !declared[name] {
				return fmt.Errorf("fallback chain %q references undeclared provider %q", opType, name)
			}
		}
	}

	return nil
}
