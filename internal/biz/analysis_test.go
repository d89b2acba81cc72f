package biz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"InferGate/internal/conf"
	"InferGate/internal/data"
	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alicebob/miniredis/v2"
)

// analyzeHandler returns a handler serving one canned analyze response.
func analyzeHandler(status int, body map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func successBody(data map[string]any) map[string]any {
	return map[string]any{"success": true, "data": data, "model": "gpt-4o"}
}

func errorBody(message string) map[string]any {
	return map[string]any{"success": false, "error": map[string]any{"message": message}}
}

type analysisFixture struct {
	uc    *AnalysisUseCase
	audit *recordingAuditLogger
}

// newAnalysisFixture wires a full pipeline against httptest provider
// endpoints.
func newAnalysisFixture(t *testing.T, degradationEnabled bool, handlers map[string]http.HandlerFunc) *analysisFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := log.NewStdLogger(os.Stdout)

	c := &conf.Resilience{
		Retry: &conf.Resilience_Retry{
			MaxRetries:        1,
			BaseDelayMs:       1,
			BackoffMultiplier: 2.0,
			MaxDelayMs:        5,
		},
		CircuitBreaker: &conf.Resilience_CircuitBreaker{
			TimeoutSeconds:             300,
			FailureRateThreshold:       0.5,
			MinSamples:                 10,
			RecentFailureLimit:         5,
			RecentFailureWindowSeconds: 300,
		},
		FallbackChains:     map[string][]string{"receipt": {"openai", "anthropic"}, "document": {"anthropic", "openai"}},
		DegradationEnabled: degradationEnabled,
	}

	for _, name := range []string{"openai", "anthropic"} {
		handler, ok := handlers[name]
		if !ok {
			handler = analyzeHandler(http.StatusInternalServerError, errorBody("internal server error"))
		}
		server := httptest.NewServer(handler)
		t.Cleanup(server.Close)
		c.Providers = append(c.Providers, &conf.Provider{
			Name:           name,
			Enabled:        true,
			Endpoint:       server.URL,
			TimeoutSeconds: 5,
		})
	}

	repo := data.NewResilienceRepo(rdb, logger)
	cache := data.NewCacheClient(rdb)
	classifier := NewErrorClassifier()
	retry := NewRetryUseCase(c, classifier, logger)
	registry := NewProviderRegistry(c, logger)
	audit := &recordingAuditLogger{}

	orchestrator := NewOrchestratorUseCase(repo, retry, classifier, registry, cache, audit, c, logger)
	selector := NewSelectorUseCase(&conf.Selection{Models: testModelRegistry()}, repo, cache, logger)
	validator := NewValidatorUseCase(logger)
	degradation := NewDegradationUseCase(logger)

	uc := NewAnalysisUseCase(orchestrator, selector, validator, degradation, audit, c, logger)
	return &analysisFixture{uc: uc, audit: audit}
}

func TestAnalyze_EndToEndSuccess(t *testing.T) {
	f := newAnalysisFixture(t, true, map[string]http.HandlerFunc{
		"openai": analyzeHandler(http.StatusOK, successBody(map[string]any{
			"merchant_name": "KIWI",
			"total_amount":  99.50,
		})),
	})

	result, err := f.uc.Analyze(context.Background(), &AnalyzeRequest{
		Content:       "receipt text",
		OperationType: model.OperationReceipt,
	})

	require.NoError(t, err)
	assert.Equal(t, "openai", result.Provider)
	assert.False(t, result.Degraded)
	assert.GreaterOrEqual(t, result.Confidence, 0.85)
	assert.Equal(t, "KIWI", result.Data["merchant_name"])
}

func TestAnalyze_FallsBackToSecondProvider(t *testing.T) {
	f := newAnalysisFixture(t, true, map[string]http.HandlerFunc{
		"openai": analyzeHandler(http.StatusServiceUnavailable, errorBody("service unavailable")),
		"anthropic": analyzeHandler(http.StatusOK, successBody(map[string]any{
			"merchant_name": "MENY",
			"total_amount":  42.0,
		})),
	})

	result, err := f.uc.Analyze(context.Background(), &AnalyzeRequest{
		Content:       "receipt text",
		OperationType: model.OperationReceipt,
	})

	require.NoError(t, err)
	assert.Equal(t, "anthropic", result.Provider)
}

func TestAnalyze_ExhaustionDegrades(t *testing.T) {
	f := newAnalysisFixture(t, true, nil) // both providers fail

	result, err := f.uc.Analyze(context.Background(), &AnalyzeRequest{
		Content:       sampleReceipt,
		OperationType: model.OperationReceipt,
	})

	require.NoError(t, err, "degradation replaces the aggregate failure")
	assert.True(t, result.Degraded)
	assert.Equal(t, model.FallbackProviderName, result.Provider)
	assert.Less(t, result.Confidence, 0.7)
	assert.Equal(t, "REMA 1000", result.Data["merchant_name"])

	require.NotEmpty(t, f.audit.degradations)
	assert.Equal(t, []string{"openai", "anthropic"}, f.audit.degradations[0].TriedProviders)
}

func TestAnalyze_InvalidInputNeverDegrades(t *testing.T) {
	f := newAnalysisFixture(t, true, map[string]http.HandlerFunc{
		"openai":    analyzeHandler(http.StatusBadRequest, errorBody("invalid request: malformed content")),
		"anthropic": analyzeHandler(http.StatusBadRequest, errorBody("invalid request: malformed content")),
	})

	result, err := f.uc.Analyze(context.Background(), &AnalyzeRequest{
		Content:       sampleReceipt,
		OperationType: model.OperationReceipt,
	})

	// Bad input is the caller's problem: no fabricated fallback result,
	// the classified failure surfaces instead.
	assert.Nil(t, result)
	var exhausted *AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.NotNil(t, exhausted.LastClassification)
	assert.Equal(t, model.CategoryInvalidRequest, exhausted.LastClassification.Category)
	assert.False(t, exhausted.LastClassification.FallbackProvider)

	// The chain stopped at the first provider and degradation never ran.
	assert.Equal(t, []string{"openai"}, exhausted.Tried)
	assert.Empty(t, f.audit.degradations)
}

func TestAnalyze_ExhaustionWithDegradationDisabled(t *testing.T) {
	f := newAnalysisFixture(t, false, nil)

	_, err := f.uc.Analyze(context.Background(), &AnalyzeRequest{
		Content:       "receipt text",
		OperationType: model.OperationReceipt,
	})

	var exhausted *AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Failures, 2)
}

func TestAnalyze_NoSuitableModelIsFirstClassFailure(t *testing.T) {
	f := newAnalysisFixture(t, true, map[string]http.HandlerFunc{
		"openai": analyzeHandler(http.StatusOK, successBody(map[string]any{"merchant_name": "X", "total_amount": 1.0})),
	})

	_, err := f.uc.Analyze(context.Background(), &AnalyzeRequest{
		Content:       "receipt text",
		OperationType: model.OperationReceipt,
		Requirements: &model.ModelRequirements{
			Provider: "anthropic", // no anthropic model supports receipt in the test registry
		},
	})

	var noModel *NoSuitableModelError
	require.ErrorAs(t, err, &noModel)
}

func TestAnalyze_SelectedModelSteersPreferredProvider(t *testing.T) {
	f := newAnalysisFixture(t, true, map[string]http.HandlerFunc{
		"openai": analyzeHandler(http.StatusOK, successBody(map[string]any{
			"title":          "Rapport",
			"classification": "report",
		})),
		"anthropic": analyzeHandler(http.StatusOK, successBody(map[string]any{
			"title":          "Rapport",
			"classification": "report",
		})),
	})

	// Document chain starts with anthropic, but the selected openai
	// model promotes openai to the front.
	result, err := f.uc.Analyze(context.Background(), &AnalyzeRequest{
		Content:       "document text",
		OperationType: model.OperationDocument,
		Requirements:  &model.ModelRequirements{Provider: "openai"},
	})

	require.NoError(t, err)
	assert.Equal(t, "openai", result.Provider)
}

func TestAnalyze_InvalidProviderOutputRejected(t *testing.T) {
	f := newAnalysisFixture(t, true, map[string]http.HandlerFunc{
		"openai": analyzeHandler(http.StatusOK, successBody(map[string]any{
			"unexpected": "shape",
		})),
	})

	_, err := f.uc.Analyze(context.Background(), &AnalyzeRequest{
		Content:       "receipt text",
		OperationType: model.OperationReceipt,
	})

	var invalid *InvalidOutputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "openai", invalid.Provider)
}

func TestAnalyze_EmptyContentRejected(t *testing.T) {
	f := newAnalysisFixture(t, true, nil)

	_, err := f.uc.Analyze(context.Background(), &AnalyzeRequest{
		Content:       "",
		OperationType: model.OperationReceipt,
	})
	require.Error(t, err)
}
