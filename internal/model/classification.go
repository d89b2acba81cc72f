package model

import "time"

// ErrorCategory identifies the failure class of a provider error.
type ErrorCategory string

const (
	CategoryRateLimit          ErrorCategory = "rate_limit"
	CategoryAuthentication     ErrorCategory = "authentication"
	CategoryQuotaExceeded      ErrorCategory = "quota_exceeded"
	CategoryServiceUnavailable ErrorCategory = "service_unavailable"
	CategoryNetwork            ErrorCategory = "network"
	CategoryTimeout            ErrorCategory = "timeout"
	CategoryInvalidRequest     ErrorCategory = "invalid_request"
	CategoryContentPolicy      ErrorCategory = "content_policy"
	CategoryUnknown            ErrorCategory = "unknown"
)

// Severity is the user-facing severity of a classified error.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Classification is the result of classifying one provider error.
// It is produced fresh per error and never persisted.
type Classification struct {
	Category ErrorCategory `json:"category"`
	// Retry indicates the same provider may be retried in place.
	Retry bool `json:"retry"`
	// Delay is the recommended base delay before the next attempt.
	Delay time.Duration `json:"delay"`
	// FallbackProvider indicates the next provider in the chain should be tried.
	FallbackProvider bool `json:"fallback_provider"`
	// CircuitBreaker indicates the failure should count toward tripping the breaker.
	CircuitBreaker bool `json:"circuit_breaker"`
	// UserNotification indicates the failure should be surfaced to the end user.
	UserNotification bool     `json:"user_notification"`
	Severity         Severity `json:"severity"`
	// UserMessage is the short, non-technical message shown to users.
	// The raw vendor error text is preserved only in logs.
	UserMessage string `json:"user_message"`
}
