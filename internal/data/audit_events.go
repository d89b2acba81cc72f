package data

// AuditEventType defines audit event type constants.
// These constants are used for audit logging in resilience_audit_logs table.
type AuditEventType string

const (
	// AuditEventBreakerOpened is logged when a provider circuit breaker trips
	AuditEventBreakerOpened AuditEventType = "BREAKER_OPENED"

	// AuditEventBreakerClosed is logged when a provider circuit breaker clears
	AuditEventBreakerClosed AuditEventType = "BREAKER_CLOSED"

	// AuditEventDegradationActivated is logged when pattern-based fallback analysis runs
	AuditEventDegradationActivated AuditEventType = "DEGRADATION_ACTIVATED"

	// AuditEventAlertRaised is logged when the health monitor raises an alert
	AuditEventAlertRaised AuditEventType = "ALERT_RAISED"
)

// String returns the string representation of AuditEventType
func (e AuditEventType) String() string {
	return string(e)
}
