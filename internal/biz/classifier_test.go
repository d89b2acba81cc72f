package biz

import (
	"testing"

	"InferGate/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_StatusCodes(t *testing.T) {
	c := NewErrorClassifier()

	tests := []struct {
		name       string
		statusCode int
		want       model.ErrorCategory
	}{
		{"429 is rate limit", 429, model.CategoryRateLimit},
		{"401 is authentication", 401, model.CategoryAuthentication},
		{"403 is authentication", 403, model.CategoryAuthentication},
		{"402 is quota", 402, model.CategoryQuotaExceeded},
		{"500 is service unavailable", 500, model.CategoryServiceUnavailable},
		{"502 is service unavailable", 502, model.CategoryServiceUnavailable},
		{"503 is service unavailable", 503, model.CategoryServiceUnavailable},
		{"504 is service unavailable", 504, model.CategoryServiceUnavailable},
		{"400 is invalid request", 400, model.CategoryInvalidRequest},
		{"408 is timeout", 408, model.CategoryTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify("", tt.statusCode)
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestClassify_MessagePatterns(t *testing.T) {
	c := NewErrorClassifier()

	tests := []struct {
		msg  string
		want model.ErrorCategory
	}{
		{"Rate limit exceeded, retry after 20s", model.CategoryRateLimit},
		{"Too Many Requests", model.CategoryRateLimit},
		{"You exceeded your current quota, please check your plan", model.CategoryQuotaExceeded},
		{"Invalid API key provided", model.CategoryAuthentication},
		{"request blocked by content policy", model.CategoryContentPolicy},
		{"Post \"https://api.example.com\": context deadline exceeded", model.CategoryTimeout},
		{"The server is overloaded, try again later", model.CategoryServiceUnavailable},
		{"dial tcp: connection refused", model.CategoryNetwork},
		{"This model's maximum context length is 128000 tokens", model.CategoryInvalidRequest},
		{"something entirely novel happened", model.CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got := c.Classify(tt.msg, 0)
			assert.Equal(t, tt.want, got.Category)
		})
	}
}

func TestClassify_StatusCodeWinsOverMessage(t *testing.T) {
	c := NewErrorClassifier()

	// 429 body with a misleading "timeout" in the message still
	// classifies as rate limit.
	got := c.Classify("gateway timeout while queuing", 429)
	assert.Equal(t, model.CategoryRateLimit, got.Category)
}

func TestClassify_AuthBeforeInvalidRequest(t *testing.T) {
	c := NewErrorClassifier()

	got := c.Classify("invalid api key", 0)
	assert.Equal(t, model.CategoryAuthentication, got.Category)
}

func TestClassify_ActionPolicy(t *testing.T) {
	c := NewErrorClassifier()

	rateLimit := c.Classify("rate limit exceeded", 0)
	assert.True(t, rateLimit.Retry)
	assert.True(t, rateLimit.FallbackProvider)
	assert.True(t, rateLimit.CircuitBreaker)
	assert.Positive(t, rateLimit.Delay)

	auth := c.Classify("", 401)
	assert.False(t, auth.Retry)
	assert.True(t, auth.FallbackProvider)
	assert.True(t, auth.CircuitBreaker)
	assert.True(t, auth.UserNotification)
	assert.Equal(t, model.SeverityCritical, auth.Severity)

	invalid := c.Classify("", 400)
	assert.False(t, invalid.Retry)
	assert.False(t, invalid.FallbackProvider)
	assert.False(t, invalid.CircuitBreaker)

	policy := c.Classify("flagged by safety system", 0)
	assert.False(t, policy.Retry)
	assert.True(t, policy.FallbackProvider)
	assert.False(t, policy.CircuitBreaker)
	assert.True(t, policy.UserNotification)
}

func TestClassify_UserMessageNeverEchoesVendorText(t *testing.T) {
	c := NewErrorClassifier()

	vendorErr := "upstream exploded: secret internal detail xyz-123"
	got := c.Classify(vendorErr, 500)
	require.NotEmpty(t, got.UserMessage)
	assert.NotContains(t, got.UserMessage, "xyz-123")
}

func TestClassifyResult(t *testing.T) {
	c := NewErrorClassifier()

	got := c.ClassifyResult(&model.ProviderResult{
		Success:    false,
		Error:      "too many requests",
		StatusCode: 429,
		Provider:   "openai",
	})
	require.NotNil(t, got)
	assert.Equal(t, model.CategoryRateLimit, got.Category)

	assert.Nil(t, c.ClassifyResult(&model.ProviderResult{Success: true}))
	assert.Nil(t, c.ClassifyResult(nil))
}

func TestClassify_EveryCategoryHasAction(t *testing.T) {
	categories := []model.ErrorCategory{
		model.CategoryRateLimit,
		model.CategoryAuthentication,
		model.CategoryQuotaExceeded,
		model.CategoryServiceUnavailable,
		model.CategoryNetwork,
		model.CategoryTimeout,
		model.CategoryInvalidRequest,
		model.CategoryContentPolicy,
		model.CategoryUnknown,
	}

	for _, category := range categories {
		action, ok := categoryActions[category]
		require.True(t, ok, "missing action for %s", category)
		assert.NotEmpty(t, action.userMessage, "missing user message for %s", category)
	}
}
