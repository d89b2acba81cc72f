package data

import (
	"context"
	"encoding/json"
	"time"

	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// AuditLog is the GORM model for the resilience_audit_logs table
type AuditLog struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	Provider  string    `gorm:"column:provider;type:varchar(50);not null;index"`
	EventType string    `gorm:"column:event_type;type:varchar(50);not null"`
	Details   string    `gorm:"column:details;type:json"` // JSON string
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "resilience_audit_logs"
}

// AuditLoggerImpl implements biz.AuditLogger interface
type AuditLoggerImpl struct {
	db      *gorm.DB
	logChan chan *AuditLog
	logger  *log.Helper
}

// NewAuditLogger creates a new audit logger with async channel
func NewAuditLogger(db *gorm.DB, logger log.Logger) *AuditLoggerImpl {
	al := &AuditLoggerImpl{
		db:      db,
		logChan: make(chan *AuditLog, 1000), // Buffer size 1000 to prevent blocking
		logger:  log.NewHelper(logger),
	}

	// Start background goroutine for async logging
	go al.start()

	return al
}

// start processes audit log events from channel
func (a *AuditLoggerImpl) start() {
	for event := range a.logChan {
		ctx := context.Background()
		if err := a.db.WithContext(ctx).Create(event).Error; err != nil {
			a.logger.Errorw("failed to write audit log",
				"provider", event.Provider,
				"event_type", event.EventType,
				"error", err)
		} else {
			a.logger.Debugw("audit log written",
				"provider", event.Provider,
				"event_type", event.EventType)
		}
	}
}

// enqueue sends an event to the channel without blocking the caller.
func (a *AuditLoggerImpl) enqueue(event *AuditLog) {
	select {
	case a.logChan <- event:
		// Successfully queued
	default:
		a.logger.Warnw("audit log channel full, dropping event",
			"provider", event.Provider,
			"event_type", event.EventType)
	}
}

// LogBreakerOpened logs a circuit breaker trip event
func (a *AuditLoggerImpl) LogBreakerOpened(ctx context.Context, event *model.BreakerOpenedEvent) {
	details := map[string]interface{}{
		"operation_type":  string(event.OperationType),
		"reason":          event.Reason,
		"timeout_seconds": event.TimeoutSeconds,
		"opened_at":       event.OpenedAt.Format(time.RFC3339),
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		a.logger.Errorw("failed to marshal audit log details", "error", err)
		return
	}

	a.enqueue(&AuditLog{
		Provider:  event.Provider,
		EventType: AuditEventBreakerOpened.String(),
		Details:   string(detailsJSON),
	})
}

// LogBreakerClosed logs a circuit breaker clear event
func (a *AuditLoggerImpl) LogBreakerClosed(ctx context.Context, event *model.BreakerClosedEvent) {
	details := map[string]interface{}{
		"closed_at": event.ClosedAt.Format(time.RFC3339),
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		a.logger.Errorw("failed to marshal audit log details", "error", err)
		return
	}

	a.enqueue(&AuditLog{
		Provider:  event.Provider,
		EventType: AuditEventBreakerClosed.String(),
		Details:   string(detailsJSON),
	})
}

// LogDegradationActivated logs a pattern-based fallback activation
func (a *AuditLoggerImpl) LogDegradationActivated(ctx context.Context, event *model.DegradationEvent) {
	details := map[string]interface{}{
		"operation_type":  string(event.OperationType),
		"tried_providers": event.TriedProviders,
		"last_error":      event.LastError,
		"occurred_at":     event.OccurredAt.Format(time.RFC3339),
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		a.logger.Errorw("failed to marshal audit log details", "error", err)
		return
	}

	a.enqueue(&AuditLog{
		Provider:  model.FallbackProviderName,
		EventType: AuditEventDegradationActivated.String(),
		Details:   string(detailsJSON),
	})
}

// LogAlertRaised logs a health monitor alert
func (a *AuditLoggerImpl) LogAlertRaised(ctx context.Context, alert *model.Alert) {
	details := map[string]interface{}{
		"alert_id": alert.ID,
		"severity": string(alert.Severity),
		"title":    alert.Title,
		"message":  alert.Message,
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		a.logger.Errorw("failed to marshal audit log details", "error", err)
		return
	}

	a.enqueue(&AuditLog{
		Provider:  alert.Provider,
		EventType: AuditEventAlertRaised.String(),
		Details:   string(detailsJSON),
	})
}
