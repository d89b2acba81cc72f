package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"InferGate/internal/conf"
	"InferGate/internal/data"
	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// OperationFactory produces the operation to run against one candidate
// provider. The orchestrator supplies each provider in chain order.
type OperationFactory func(provider string, client ProviderClient) Operation

// AllProvidersExhaustedError is raised when every provider in a
// fallback chain failed. It carries each provider's last failure so
// callers never need to inspect per-provider errors separately.
type AllProvidersExhaustedError struct {
	OperationType model.OperationType
	Tried         []string
	Failures      map[string]string
	LastError     string
	// LastClassification is the classification of the final failure,
	// used for the user-facing message.
	LastClassification *model.Classification
}

// Error implements the error interface.
func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("all providers exhausted for %s (tried %d): %s",
		e.OperationType, len(e.Tried), e.LastError)
}

// OrchestratorUseCase is the outer resilience control loop: per-provider
// circuit breaking, health-verdict gating, fallback chain traversal,
// and failure-threshold breaker trips. The retry engine and classifier
// feed into it; all shared state lives in the external store.
type OrchestratorUseCase struct {
	repo       ResilienceRepo
	retry      *RetryUseCase
	classifier *ErrorClassifier
	registry   *ProviderRegistry
	cache      data.CacheClient
	audit      AuditLogger
	cfg        *conf.Resilience
	logger     *log.Helper
}

// NewOrchestratorUseCase creates the resilience orchestrator.
func NewOrchestratorUseCase(
	repo ResilienceRepo,
	retry *RetryUseCase,
	classifier *ErrorClassifier,
	registry *ProviderRegistry,
	cache data.CacheClient,
	audit AuditLogger,
	c *conf.Resilience,
	logger log.Logger,
) *OrchestratorUseCase {
	return &OrchestratorUseCase{
		repo:       repo,
		retry:      retry,
		classifier: classifier,
		registry:   registry,
		cache:      cache,
		audit:      audit,
		cfg:        c,
		logger:     log.NewHelper(logger),
	}
}

// ExecuteWithResilience runs the operation against each provider in
// the fallback chain for opType, in order, until one succeeds. First
// success wins; exhaustion returns *AllProvidersExhaustedError.
func (uc *OrchestratorUseCase) ExecuteWithResilience(ctx context.Context, opType model.OperationType, preferred string, factory OperationFactory) (*model.ProviderResult, error) {
	chain := uc.ResolveChain(opType, preferred)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no providers available for operation type %s", opType)
	}

	exhausted := &AllProvidersExhaustedError{
		OperationType: opType,
		Failures:      make(map[string]string),
	}

	for _, provider := range chain {
		if skip, reason := uc.shouldSkip(ctx, provider); skip {
			uc.logger.Infow("skipping provider",
				"type", "fallback",
				"provider", provider,
				"operation", string(opType),
				"reason", reason)
			continue
		}

		exhausted.Tried = append(exhausted.Tried, provider)

		client := uc.registry.Client(provider)
		start := time.Now()
		result, classification, err := uc.retry.Execute(ctx, provider, opType, factory(provider, client))
		elapsed := time.Since(start)

		if err != nil {
			// Context cancellation or a hard operation error ends the
			// whole loop; switching providers will not help.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			uc.logger.Errorw("provider operation error",
				"type", "provider",
				"provider", provider,
				"operation", string(opType),
				"error", err)
			exhausted.Failures[provider] = err.Error()
			exhausted.LastError = err.Error()
			continue
		}

		if result.Success {
			uc.recordSuccess(ctx, provider, opType, elapsed)
			return result, nil
		}

		uc.recordFailure(ctx, provider, opType, classification)

		exhausted.Failures[provider] = result.Error
		exhausted.LastError = result.Error
		exhausted.LastClassification = classification

		// Input problems are not fixed by switching providers.
		if classification != nil && !classification.FallbackProvider {
			uc.logger.Warnw("failure category does not permit provider fallback",
				"type", "fallback",
				"provider", provider,
				"operation", string(opType),
				"category", string(classification.Category))
			break
		}
	}

	return nil, exhausted
}

// ResolveChain returns the ordered provider chain for an operation
// type: the configured chain with the preferred provider promoted to
// the front (de-duplicated) and disabled providers filtered out.
func (uc *OrchestratorUseCase) ResolveChain(opType model.OperationType, preferred string) []string {
	configured := uc.cfg.FallbackChains[string(opType)]

	chain := make([]string, 0, len(configured)+1)
	if preferred != "" && uc.registry.Enabled(preferred) {
		chain = append(chain, preferred)
	}
	for _, p := range configured {
		if p == preferred {
			continue
		}
		if !uc.registry.Enabled(p) {
			continue
		}
		chain = append(chain, p)
	}

	return chain
}

// shouldSkip reports whether a provider must be skipped: open circuit
// breaker (not yet expired) or an unhealthy cached verdict. A missing
// or stale verdict, and any store read failure, reads as eligible; the
// health subsystem must never become a point of failure itself.
func (uc *OrchestratorUseCase) shouldSkip(ctx context.Context, provider string) (bool, string) {
	state, err := uc.repo.GetBreakerState(ctx, provider)
	if err != nil {
		uc.logger.Warnw("breaker state read failed, treating as closed",
			"type", "breaker",
			"provider", provider,
			"error", err)
	} else if state != nil && state.Open && !state.Expired(time.Now()) {
		return true, "circuit breaker open"
	}

	var verdict model.HealthSnapshot
	if err := uc.cache.Get(ctx, data.BuildCacheKey(data.CacheKeyHealthVerdict, provider), &verdict); err == nil {
		if !verdict.Healthy {
			return true, "unhealthy verdict"
		}
	}

	return false, ""
}

// recordSuccess clears any breaker entry, increments the success
// counter, and records the latency sample. Store failures are logged
// and ignored; a request that succeeded is returned regardless.
func (uc *OrchestratorUseCase) recordSuccess(ctx context.Context, provider string, opType model.OperationType, elapsed time.Duration) {
	state, err := uc.repo.GetBreakerState(ctx, provider)
	if err == nil && state != nil {
		if err := uc.repo.ClearBreaker(ctx, provider); err != nil {
			uc.logger.Warnw("failed to clear breaker on success",
				"type", "breaker",
				"provider", provider,
				"error", err)
		} else {
			uc.logger.Infow("circuit breaker closed",
				"type", "breaker",
				"provider", provider)
			uc.audit.LogBreakerClosed(ctx, &model.BreakerClosedEvent{
				Provider: provider,
				ClosedAt: time.Now(),
			})
		}
	}

	if err := uc.repo.IncrementSuccess(ctx, provider, opType); err != nil {
		uc.logger.Warnw("failed to increment success counter",
			"type", "redis",
			"provider", provider,
			"error", err)
	}
	if err := uc.repo.RecordLatency(ctx, provider, elapsed); err != nil {
		uc.logger.Warnw("failed to record latency",
			"type", "redis",
			"provider", provider,
			"error", err)
	}
}

// recordFailure increments the failure counters and recent-failure
// window, then evaluates the breaker trip conditions when the failure
// category counts toward the breaker.
func (uc *OrchestratorUseCase) recordFailure(ctx context.Context, provider string, opType model.OperationType, classification *model.Classification) {
	if err := uc.repo.IncrementFailure(ctx, provider, opType); err != nil {
		uc.logger.Warnw("failed to increment failure counter",
			"type", "redis",
			"provider", provider,
			"error", err)
	}
	if err := uc.repo.RecordFailureTimestamp(ctx, provider, time.Now()); err != nil {
		uc.logger.Warnw("failed to record failure timestamp",
			"type", "redis",
			"provider", provider,
			"error", err)
	}

	if classification == nil || !classification.CircuitBreaker {
		return
	}

	uc.maybeTripBreaker(ctx, provider, opType)
}

// maybeTripBreaker opens the breaker when the failure ratio over the
// minimum sample exceeds the threshold, or when the recent-failure
// window is saturated. The breaker stays closed on store read errors.
func (uc *OrchestratorUseCase) maybeTripBreaker(ctx context.Context, provider string, opType model.OperationType) {
	cb := uc.cfg.CircuitBreaker

	var reason string

	_, failure, total, err := uc.repo.GetCounters(ctx, provider, opType)
	if err != nil {
		uc.logger.Warnw("failed to read failure counters",
			"type", "breaker",
			"provider", provider,
			"error", err)
	} else if total >= int64(cb.MinSamples) {
		ratio := float64(failure) / float64(total)
		if ratio > cb.FailureRateThreshold {
			reason = fmt.Sprintf("failure rate %.2f over %d samples", ratio, total)
		}
	}

	if reason == "" {
		window := time.Duration(cb.RecentFailureWindowSeconds) * time.Second
		count, err := uc.repo.CountRecentFailures(ctx, provider, window)
		if err != nil {
			uc.logger.Warnw("failed to count recent failures",
				"type", "breaker",
				"provider", provider,
				"error", err)
		} else if count >= int64(cb.RecentFailureLimit) {
			reason = fmt.Sprintf("%d failures within %s", count, window)
		}
	}

	if reason == "" {
		return
	}

	timeoutSeconds := uc.registry.BreakerTimeout(provider, cb.TimeoutSeconds)
	now := time.Now()
	state := &model.CircuitBreakerState{
		Open:           true,
		OpenedAt:       now,
		TimeoutSeconds: timeoutSeconds,
		Reason:         reason,
	}

	if err := uc.repo.OpenBreaker(ctx, provider, state); err != nil {
		uc.logger.Errorw("failed to open circuit breaker",
			"type", "breaker",
			"provider", provider,
			"error", err)
		return
	}

	uc.logger.Warnw("circuit breaker opened",
		"type", "breaker",
		"provider", provider,
		"operation", string(opType),
		"reason", reason,
		"timeout_seconds", timeoutSeconds)

	uc.audit.LogBreakerOpened(ctx, &model.BreakerOpenedEvent{
		Provider:       provider,
		OperationType:  opType,
		Reason:         reason,
		TimeoutSeconds: timeoutSeconds,
		OpenedAt:       now,
	})
}
