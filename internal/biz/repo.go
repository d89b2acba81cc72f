package biz

import (
	"context"
	"time"

	"InferGate/internal/model"
)

// ResilienceRepo defines the interface for resilience state operations.
// Following Kratos v2 DDD architecture, interfaces are defined in biz layer.
// Implementation is in data layer (data.ResilienceRepo).
type ResilienceRepo interface {
	// Circuit breaker state: absence of an entry means "closed".
	GetBreakerState(ctx context.Context, provider string) (*model.CircuitBreakerState, error)
	OpenBreaker(ctx context.Context, provider string, state *model.CircuitBreakerState) error
	ClearBreaker(ctx context.Context, provider string) error

	// Rolling metrics counters per provider and operation type.
	IncrementSuccess(ctx context.Context, provider string, opType model.OperationType) error
	IncrementFailure(ctx context.Context, provider string, opType model.OperationType) error
	GetCounters(ctx context.Context, provider string, opType model.OperationType) (success, failure, total int64, err error)

	// Recent-failure window for burst detection.
	RecordFailureTimestamp(ctx context.Context, provider string, ts time.Time) error
	CountRecentFailures(ctx context.Context, provider string, window time.Duration) (int64, error)

	// Latency accumulators and the aggregated metrics view.
	RecordLatency(ctx context.Context, provider string, elapsed time.Duration) error
	GetProviderMetrics(ctx context.Context, provider string, opTypes []model.OperationType) (*model.ProviderMetrics, error)
}

// AlertRepo defines the interface for the bounded alert ring buffer.
type AlertRepo interface {
	Append(ctx context.Context, alert *model.Alert) error
	List(ctx context.Context, limit int) ([]*model.Alert, error)
}

// AuditLogger defines the interface for async audit trail logging.
// All methods are fire-and-forget; implementations must never block
// the resilience loop.
type AuditLogger interface {
	LogBreakerOpened(ctx context.Context, event *model.BreakerOpenedEvent)
	LogBreakerClosed(ctx context.Context, event *model.BreakerClosedEvent)
	LogDegradationActivated(ctx context.Context, event *model.DegradationEvent)
	LogAlertRaised(ctx context.Context, alert *model.Alert)
}

// NotificationSink delivers high/critical alerts to an external
// channel. Delivery failures must be swallowed by the implementation,
// never propagated back into the resilience loop.
type NotificationSink interface {
	Send(ctx context.Context, alert *model.Alert) error
}
