package model

import "time"

// BreakerOpenedEvent represents a circuit breaker trip for a provider.
type BreakerOpenedEvent struct {
	Provider       string
	OperationType  OperationType
	Reason         string
	TimeoutSeconds int
	OpenedAt       time.Time
}

// BreakerClosedEvent represents a circuit breaker clearing on success.
type BreakerClosedEvent struct {
	Provider string
	ClosedAt time.Time
}

// DegradationEvent represents an activation of pattern-based fallback
// analysis after every provider in a chain was exhausted.
type DegradationEvent struct {
	OperationType  OperationType
	TriedProviders []string
	LastError      string
	OccurredAt     time.Time
}
