package conf

import (
	"google.golang.org/protobuf/types/known/durationpb"
)

// Bootstrap is the root configuration object assembled by NewBootstrap.
type Bootstrap struct {
	Server     *Server
	Data       *Data
	Resilience *Resilience
	Selection  *Selection
	Health     *Health
	Log        *Log
}

// Server holds transport configuration.
type Server struct {
	Http *Server_HTTP
}

// Server_HTTP holds HTTP server configuration.
type Server_HTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds data layer configuration.
type Data struct {
	Database *Data_Database
	Redis    *Data_Redis
}

// Data_Database holds database connection configuration.
type Data_Database struct {
	Driver string
	Source string
}

// Data_Redis holds Redis connection configuration.
type Data_Redis struct {
	Network      string
	Addr         string
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Resilience holds retry, circuit breaker, and fallback configuration.
type Resilience struct {
	Retry          *Resilience_Retry
	CircuitBreaker *Resilience_CircuitBreaker
	// FallbackChains maps operation type to the ordered provider chain,
	// e.g. receipt -> [openai, anthropic].
	FallbackChains map[string][]string
	Providers      []*Provider
	// DegradationEnabled controls whether pattern-based fallback analysis
	// runs when every provider in a chain is exhausted.
	DegradationEnabled bool
}

// Resilience_Retry holds retry policy configuration.
type Resilience_Retry struct {
	MaxRetries        int     `mapstructure:"max_retries"`
	BaseDelayMs       int     `mapstructure:"base_delay_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	Jitter            bool    `mapstructure:"jitter"`
	MaxDelayMs        int     `mapstructure:"max_delay_ms"`
}

// Resilience_CircuitBreaker holds circuit breaker trip thresholds.
type Resilience_CircuitBreaker struct {
	// TimeoutSeconds is the default open duration before lazy expiry.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// FailureRateThreshold is the failure ratio (0..1) that trips the breaker
	// once MinSamples requests have been observed.
	FailureRateThreshold float64 `mapstructure:"failure_rate_threshold"`
	MinSamples           int     `mapstructure:"min_samples"`
	// RecentFailureLimit trips the breaker when this many failures land
	// within RecentFailureWindowSeconds, independent of the ratio.
	RecentFailureLimit         int `mapstructure:"recent_failure_limit"`
	RecentFailureWindowSeconds int `mapstructure:"recent_failure_window_seconds"`
}

// Provider describes one configured AI provider.
type Provider struct {
	Name    string `mapstructure:"name"`
	Enabled bool   `mapstructure:"enabled"`
	// Endpoint is the analyze endpoint of the vendor-specific client.
	Endpoint string `mapstructure:"endpoint"`
	ApiKey   string `mapstructure:"api_key"`
	ProxyUrl string `mapstructure:"proxy_url"`
	// TimeoutSeconds bounds a single underlying provider call.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// BreakerTimeoutSeconds overrides the default breaker open duration.
	BreakerTimeoutSeconds int `mapstructure:"breaker_timeout_seconds"`
}

// Selection holds the model registry and tier configuration.
type Selection struct {
	Models []*ModelEntry
	// CacheTTLSeconds bounds how long a selection result is reused.
	CacheTTLSeconds int
}

// ModelEntry is one hand-curated model registry row.
type ModelEntry struct {
	Name                 string          `mapstructure:"name"`
	Provider             string          `mapstructure:"provider"`
	SupportedTasks       []string        `mapstructure:"supported_tasks"`
	Capabilities         []string        `mapstructure:"capabilities"`
	Features             map[string]bool `mapstructure:"features"`
	InputCostPerMillion  float64         `mapstructure:"input_cost_per_million"`
	OutputCostPerMillion float64         `mapstructure:"output_cost_per_million"`
	MaxTokens            int             `mapstructure:"max_tokens"`
	ContextWindow        int             `mapstructure:"context_window"`
	QualityRating        float64         `mapstructure:"quality_rating"`
	SpeedRating          float64         `mapstructure:"speed_rating"`
	CostEfficiency       float64         `mapstructure:"cost_efficiency"`
	AvailabilityPct      float64         `mapstructure:"availability_pct"`
	// KnownIssues lists issue severities (critical/major/minor) currently
	// affecting the model; used as a multiplicative score penalty.
	KnownIssues []string `mapstructure:"known_issues"`
}

// Health holds health monitor thresholds and alerting configuration.
type Health struct {
	// CheckIntervalSeconds is the cron cadence for continuous monitoring.
	CheckIntervalSeconds int
	// MaxErrorRate is the error-rate ceiling (0..1).
	MaxErrorRate float64
	// MaxResponseTimeMs is the mean response time ceiling.
	MaxResponseTimeMs int
	// MinAvailability is the availability floor (0..1).
	MinAvailability float64
	// VerdictTTLSeconds is how long a cached health verdict stays valid.
	VerdictTTLSeconds int
	// AlertWebhookUrl receives high/critical alerts; empty disables delivery.
	AlertWebhookUrl string
	AlertRecipients []string
}

// Log holds logging configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
