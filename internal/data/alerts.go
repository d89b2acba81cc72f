package data

import (
	"context"
	"encoding/json"
	"fmt"

	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	// alertBufferKey is the Redis list backing the alert ring buffer.
	alertBufferKey = "alerts:recent"

	// AlertBufferSize bounds the ring buffer to the most recent N alerts.
	AlertBufferSize = 100
)

// AlertRepo implements biz.AlertRepo: a bounded, most-recent-first
// alert buffer for dashboard and alerting consumption. It is never a
// source of truth for control decisions.
type AlertRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewAlertRepo creates a new alert buffer repository.
func NewAlertRepo(rdb *redis.Client, logger log.Logger) *AlertRepo {
	return &AlertRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// Append pushes an alert to the front of the ring buffer and trims it
// to AlertBufferSize entries.
func (r *AlertRepo) Append(ctx context.Context, alert *model.Alert) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := r.rdb.LPush(ctx, alertBufferKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push alert: %w", err)
	}

	if err := r.rdb.LTrim(ctx, alertBufferKey, 0, AlertBufferSize-1).Err(); err != nil {
		return fmt.Errorf("failed to trim alert buffer: %w", err)
	}

	return nil
}

// List returns up to limit alerts, most recent first. A non-positive
// limit returns the whole buffer.
func (r *AlertRepo) List(ctx context.Context, limit int) ([]*model.Alert, error) {
	if r.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	if limit <= 0 || limit > AlertBufferSize {
		limit = AlertBufferSize
	}

	values, err := r.rdb.LRange(ctx, alertBufferKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	alerts := make([]*model.Alert, 0, len(values))
	for _, val := range values {
		var alert model.Alert
		if err := json.Unmarshal([]byte(val), &alert); err != nil {
			r.logger.Warnw("skipping malformed alert entry", "error", err)
			continue
		}
		alerts = append(alerts, &alert)
	}

	return alerts, nil
}
