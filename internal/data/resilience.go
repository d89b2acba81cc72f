package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// metricsTTL bounds the rolling horizon of success/failure counters.
// The failure ratio is computed over at most this window, so old,
// stale failures age out instead of accumulating forever.
const metricsTTL = 1 * time.Hour

// ResilienceRepo implements biz.ResilienceRepo against Redis.
// All entries are independent keys updated atomically; no multi-key
// transactions are required (a crash between two updates leaves at
// worst a slightly stale counter, never a wrong breaker state).
type ResilienceRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewResilienceRepo creates a new resilience state repository.
func NewResilienceRepo(rdb *redis.Client, logger log.Logger) *ResilienceRepo {
	return &ResilienceRepo{
		rdb:    rdb,
		logger: log.NewHelper(logger),
	}
}

// GetBreakerState retrieves the circuit breaker entry for a provider.
// Returns (nil, nil) when no entry is stored, which means "closed".
func (r *ResilienceRepo) GetBreakerState(ctx context.Context, provider string) (*model.CircuitBreakerState, error) {
	if r.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	val, err := r.rdb.Get(ctx, breakerKey(provider)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // no entry means closed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get breaker state: %w", err)
	}

	var state model.CircuitBreakerState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal breaker state: %w", err)
	}

	return &state, nil
}

// OpenBreaker stores an open circuit breaker entry with a TTL equal to
// its timeout. The Redis TTL and the entry's own Expired check both
// implement the lazy expiry rule; there is no background sweep.
func (r *ResilienceRepo) OpenBreaker(ctx context.Context, provider string, state *model.CircuitBreakerState) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal breaker state: %w", err)
	}

	ttl := time.Duration(state.TimeoutSeconds) * time.Second
	if err := r.rdb.Set(ctx, breakerKey(provider), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set breaker state: %w", err)
	}

	return nil
}

// ClearBreaker deletes the circuit breaker entry for a provider.
// Called on the next success for that provider.
func (r *ResilienceRepo) ClearBreaker(ctx context.Context, provider string) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	if err := r.rdb.Del(ctx, breakerKey(provider)).Err(); err != nil {
		return fmt.Errorf("failed to clear breaker state: %w", err)
	}

	return nil
}

// IncrementSuccess atomically increments the success and total counters
// for a provider and operation type. TTL is set on first increment.
func (r *ResilienceRepo) IncrementSuccess(ctx context.Context, provider string, opType model.OperationType) error {
	if err := r.incrementCounter(ctx, counterKey(provider, opType, "success")); err != nil {
		return err
	}
	return r.incrementCounter(ctx, counterKey(provider, opType, "total"))
}

// IncrementFailure atomically increments the failure and total counters
// for a provider and operation type. TTL is set on first increment.
func (r *ResilienceRepo) IncrementFailure(ctx context.Context, provider string, opType model.OperationType) error {
	if err := r.incrementCounter(ctx, counterKey(provider, opType, "failure")); err != nil {
		return err
	}
	return r.incrementCounter(ctx, counterKey(provider, opType, "total"))
}

// incrementCounter increments a single counter with expiry-on-first-touch.
func (r *ResilienceRepo) incrementCounter(ctx context.Context, key string) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment counter %s: %w", key, err)
	}

	// Set expiration on first increment (atomic operation)
	if count == 1 {
		if err := r.rdb.Expire(ctx, key, metricsTTL).Err(); err != nil {
			r.logger.Warnf("Failed to set counter expiration for %s: %v", key, err)
			// Don't return error, counter is still incremented
		}
	}

	return nil
}

// GetCounters retrieves success/failure/total counters for one
// provider and operation type. Missing keys read as zero.
func (r *ResilienceRepo) GetCounters(ctx context.Context, provider string, opType model.OperationType) (success, failure, total int64, err error) {
	if r.rdb == nil {
		return 0, 0, 0, fmt.Errorf("redis client is nil")
	}

	success, err = r.getCounter(ctx, counterKey(provider, opType, "success"))
	if err != nil {
		return 0, 0, 0, err
	}
	failure, err = r.getCounter(ctx, counterKey(provider, opType, "failure"))
	if err != nil {
		return 0, 0, 0, err
	}
	total, err = r.getCounter(ctx, counterKey(provider, opType, "total"))
	if err != nil {
		return 0, 0, 0, err
	}

	return success, failure, total, nil
}

// getCounter reads a single counter, returning 0 when the key is absent.
func (r *ResilienceRepo) getCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get counter %s: %w", key, err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse counter %s: %w", key, err)
	}

	return count, nil
}

// RecordFailureTimestamp adds a failure timestamp to the provider's
// recent-failure window (sorted set scored by Unix milliseconds).
func (r *ResilienceRepo) RecordFailureTimestamp(ctx context.Context, provider string, ts time.Time) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	key := recentFailureKey(provider)
	member := strconv.FormatInt(ts.UnixNano(), 10)

	if err := r.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(ts.UnixMilli()),
		Member: member,
	}).Err(); err != nil {
		return fmt.Errorf("failed to record failure timestamp: %w", err)
	}

	// Keep the set from growing unbounded between reads
	if err := r.rdb.Expire(ctx, key, metricsTTL).Err(); err != nil {
		r.logger.Warnf("Failed to set failure window expiration for %s: %v", provider, err)
	}

	return nil
}

// CountRecentFailures prunes entries older than the window and returns
// the number of failures remaining inside it.
func (r *ResilienceRepo) CountRecentFailures(ctx context.Context, provider string, window time.Duration) (int64, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := recentFailureKey(provider)
	cutoff := time.Now().Add(-window).UnixMilli()

	// Remove entries that fell out of the trailing window
	if _, err := r.rdb.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10)).Result(); err != nil {
		return 0, fmt.Errorf("failed to prune failure window: %w", err)
	}

	count, err := r.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count recent failures: %w", err)
	}

	return count, nil
}

// RecordLatency adds one response time sample to the provider's
// rolling latency accumulators.
func (r *ResilienceRepo) RecordLatency(ctx context.Context, provider string, elapsed time.Duration) error {
	if r.rdb == nil {
		return fmt.Errorf("redis client is nil")
	}

	sumKey := latencyKey(provider, "sum_ms")
	countKey := latencyKey(provider, "count")

	sum, err := r.rdb.IncrBy(ctx, sumKey, elapsed.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("failed to record latency sum: %w", err)
	}
	if sum == elapsed.Milliseconds() {
		_ = r.rdb.Expire(ctx, sumKey, metricsTTL).Err()
	}

	count, err := r.rdb.Incr(ctx, countKey).Result()
	if err != nil {
		return fmt.Errorf("failed to record latency count: %w", err)
	}
	if count == 1 {
		_ = r.rdb.Expire(ctx, countKey, metricsTTL).Err()
	}

	return nil
}

// GetProviderMetrics aggregates counters across the given operation
// types plus the rolling latency average into one metrics view.
func (r *ResilienceRepo) GetProviderMetrics(ctx context.Context, provider string, opTypes []model.OperationType) (*model.ProviderMetrics, error) {
	metrics := &model.ProviderMetrics{}

	for _, opType := range opTypes {
		success, failure, total, err := r.GetCounters(ctx, provider, opType)
		if err != nil {
			return nil, err
		}
		metrics.Success += success
		metrics.Failure += failure
		metrics.Total += total
	}

	sum, err := r.getCounter(ctx, latencyKey(provider, "sum_ms"))
	if err != nil {
		return nil, err
	}
	count, err := r.getCounter(ctx, latencyKey(provider, "count"))
	if err != nil {
		return nil, err
	}
	if count > 0 {
		metrics.AvgResponseTimeMs = float64(sum) / float64(count)
	}

	return metrics, nil
}

// breakerKey generates the circuit breaker key for a provider.
// Format: breaker:{provider}
func breakerKey(provider string) string {
	return fmt.Sprintf("breaker:%s", provider)
}

// counterKey generates a metrics counter key.
// Format: metrics:{provider}:{op}:{kind}
func counterKey(provider string, opType model.OperationType, kind string) string {
	return fmt.Sprintf("metrics:%s:%s:%s", provider, opType, kind)
}

// recentFailureKey generates the recent-failure window key.
// Format: recentfail:{provider}
func recentFailureKey(provider string) string {
	return fmt.Sprintf("recentfail:%s", provider)
}

// latencyKey generates a latency accumulator key.
// Format: latency:{provider}:{kind}
func latencyKey(provider, kind string) string {
	return fmt.Sprintf("latency:%s:%s", provider, kind)
}
