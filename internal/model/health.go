package model

import "time"

// CircuitBreakerState is the stored per-provider breaker entry.
// Absence of a stored state means "closed". A stored state is valid
// only while now < OpenedAt + TimeoutSeconds; past that the entry is
// logically expired and treated as closed (lazy expiry, no sweep).
type CircuitBreakerState struct {
	Open           bool      `json:"open"`
	OpenedAt       time.Time `json:"opened_at"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	Reason         string    `json:"reason"`
}

// Expired reports whether the open period has elapsed at the given time.
func (s *CircuitBreakerState) Expired(now time.Time) bool {
	return !now.Before(s.OpenedAt.Add(time.Duration(s.TimeoutSeconds) * time.Second))
}

// ProviderMetrics is a rolling success/failure/latency view per
// provider, aggregated across operation types.
type ProviderMetrics struct {
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
	Total   int64 `json:"total"`
	// AvgResponseTimeMs is the mean latency over the rolling horizon.
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// ErrorRate returns failure/total, or 0 when no samples exist.
func (m *ProviderMetrics) ErrorRate() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Failure) / float64(m.Total)
}

// Availability returns success/total, or 1 when no samples exist.
func (m *ProviderMetrics) Availability() float64 {
	if m.Total == 0 {
		return 1
	}
	return float64(m.Success) / float64(m.Total)
}

// HealthIssueType identifies which threshold a provider breached.
type HealthIssueType string

const (
	IssueHighErrorRate      HealthIssueType = "high_error_rate"
	IssueSlowResponse       HealthIssueType = "slow_response"
	IssueLowAvailability    HealthIssueType = "low_availability"
	IssueCircuitBreakerOpen HealthIssueType = "circuit_breaker_open"
)

// HealthIssue records one threshold breach with its observed value.
type HealthIssue struct {
	Type      HealthIssueType `json:"type"`
	Value     float64         `json:"value"`
	Threshold float64         `json:"threshold"`
	Severity  Severity        `json:"severity"`
}

// HealthSnapshot is a point-in-time verdict for one provider.
// It is recomputed on a cadence and cached briefly; control paths
// treat a stale or missing snapshot as healthy.
type HealthSnapshot struct {
	Provider  string           `json:"provider"`
	Healthy   bool             `json:"healthy"`
	Issues    []HealthIssue    `json:"issues,omitempty"`
	Metrics   *ProviderMetrics `json:"metrics,omitempty"`
	CheckedAt time.Time        `json:"checked_at"`
}

// Alert is a human-visibility record appended to the bounded alert
// buffer. It is never a source of truth for control decisions.
type Alert struct {
	ID        string           `json:"id"`
	Provider  string           `json:"provider"`
	Severity  Severity         `json:"severity"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Issues    []HealthIssue    `json:"issues,omitempty"`
	Metrics   *ProviderMetrics `json:"metrics,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
