package biz

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"InferGate/internal/conf"
	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// Operation is one provider call. Provider-level failures are signaled
// through the result's Success flag; a returned error means the call
// could not be made at all (request construction, cancellation).
type Operation func(ctx context.Context) (*model.ProviderResult, error)

// RetryUseCase executes a single operation with bounded retries,
// exponential backoff, and classifier-driven retry eligibility. It is
// provider-agnostic: switching providers is the orchestrator's job.
type RetryUseCase struct {
	cfg        *conf.Resilience_Retry
	classifier *ErrorClassifier
	logger     *log.Helper
}

// NewRetryUseCase creates a new retry policy engine.
func NewRetryUseCase(c *conf.Resilience, classifier *ErrorClassifier, logger log.Logger) *RetryUseCase {
	return &RetryUseCase{
		cfg:        c.Retry,
		classifier: classifier,
		logger:     log.NewHelper(logger),
	}
}

// Execute attempts op up to 1+MaxRetries times. On success it returns
// the result with a nil classification. On a non-retryable failure or
// retry exhaustion it returns the last failed result together with its
// classification. A non-nil error is returned only when the operation
// itself errored or the context was canceled during backoff.
func (uc *RetryUseCase) Execute(ctx context.Context, provider string, opType model.OperationType, op Operation) (*model.ProviderResult, *model.Classification, error) {
	var lastResult *model.ProviderResult
	var lastClassification *model.Classification

	maxRetries := uc.cfg.MaxRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := op(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("provider %s operation failed: %w", provider, err)
		}

		if result.Success {
			if attempt > 0 {
				uc.logger.Infow("operation succeeded after retries",
					"type", "retry",
					"provider", provider,
					"operation", string(opType),
					"attempt", attempt+1)
			}
			return result, nil, nil
		}

		lastResult = result
		lastClassification = uc.classifier.ClassifyResult(result)

		uc.logger.Warnw("provider attempt failed",
			"type", "retry",
			"provider", provider,
			"operation", string(opType),
			"attempt", attempt+1,
			"category", string(lastClassification.Category),
			"status", result.StatusCode,
			"error", result.Error)

		if !lastClassification.Retry || attempt == maxRetries {
			break
		}

		delay := uc.backoffDelay(lastClassification, attempt)
		uc.logger.Debugw("backing off before next attempt",
			"type", "retry",
			"provider", provider,
			"delay_ms", delay.Milliseconds())

		select {
		case <-ctx.Done():
			return lastResult, lastClassification, ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastResult, lastClassification, nil
}

// backoffDelay computes base * multiplier^attempt, jittered by ±25%
// when enabled, capped at the configured maximum. The classifier's
// recommended delay overrides the configured base when larger.
func (uc *RetryUseCase) backoffDelay(classification *model.Classification, attempt int) time.Duration {
	base := time.Duration(uc.cfg.BaseDelayMs) * time.Millisecond
	if classification.Delay > base {
		base = classification.Delay
	}

	multiplier := uc.cfg.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := time.Duration(float64(base) * math.Pow(multiplier, float64(attempt)))

	if uc.cfg.Jitter {
		// ±25% band to avoid synchronized retry storms
		factor := 0.75 + rand.Float64()*0.5 // #nosec G404 -- jitter does not need crypto randomness
		delay = time.Duration(float64(delay) * factor)
	}

	maxDelay := time.Duration(uc.cfg.MaxDelayMs) * time.Millisecond
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
