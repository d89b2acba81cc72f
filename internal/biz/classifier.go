package biz

import (
	"strings"
	"time"

	"InferGate/internal/model"
)

// categoryPattern maps a list of lower-cased message substrings to one
// error category. Matching is ordered: the first category whose pattern
// matches wins, so more specific categories must come first.
type categoryPattern struct {
	category model.ErrorCategory
	patterns []string
}

// messagePatterns is the ordered substring table for message-based
// classification. Authentication must precede invalid_request so that
// "invalid api key" is not swallowed by the generic "invalid" bucket.
var messagePatterns = []categoryPattern{
	{model.CategoryRateLimit, []string{
		"rate limit exceeded",
		"rate limit",
		"rate_limit",
		"too many requests",
		"requests per minute",
	}},
	{model.CategoryQuotaExceeded, []string{
		"insufficient_quota",
		"quota exceeded",
		"exceeded your current quota",
		"billing hard limit",
		"credit balance",
	}},
	{model.CategoryAuthentication, []string{
		"invalid api key",
		"incorrect api key",
		"invalid x-api-key",
		"authentication",
		"unauthorized",
		"permission denied",
		"access denied",
		"forbidden",
	}},
	{model.CategoryContentPolicy, []string{
		"content policy",
		"content_policy",
		"content filter",
		"safety system",
		"flagged",
	}},
	{model.CategoryTimeout, []string{
		"timeout",
		"timed out",
		"deadline exceeded",
		"context canceled",
	}},
	{model.CategoryServiceUnavailable, []string{
		"service unavailable",
		"internal server error",
		"server error",
		"bad gateway",
		"overloaded",
		"at capacity",
		"server is busy",
	}},
	{model.CategoryNetwork, []string{
		"connection refused",
		"connection reset",
		"no such host",
		"broken pipe",
		"network",
		"tls handshake",
		"unexpected eof",
		"eof",
	}},
	{model.CategoryInvalidRequest, []string{
		"invalid request",
		"invalid_request",
		"bad request",
		"malformed",
		"unsupported",
		"maximum context length",
	}},
}

// statusCategories maps HTTP status codes to error categories. Checked
// before message patterns since codes are the more reliable signal.
var statusCategories = map[int]model.ErrorCategory{
	400: model.CategoryInvalidRequest,
	401: model.CategoryAuthentication,
	402: model.CategoryQuotaExceeded,
	403: model.CategoryAuthentication,
	408: model.CategoryTimeout,
	422: model.CategoryInvalidRequest,
	429: model.CategoryRateLimit,
	500: model.CategoryServiceUnavailable,
	502: model.CategoryServiceUnavailable,
	503: model.CategoryServiceUnavailable,
	504: model.CategoryServiceUnavailable,
}

// categoryAction is the static policy row for one error category.
type categoryAction struct {
	retry            bool
	delay            time.Duration
	fallbackProvider bool
	circuitBreaker   bool
	userNotification bool
	severity         model.Severity
	userMessage      string
}

// categoryActions is the single source of truth for per-category
// policy. Extending policy means editing this table, not call sites.
var categoryActions = map[model.ErrorCategory]categoryAction{
	model.CategoryRateLimit: {
		retry:            true,
		delay:            5 * time.Second,
		fallbackProvider: true,
		circuitBreaker:   true,
		userNotification: false,
		severity:         model.SeverityWarning,
		userMessage:      "Service is temporarily busy, please try again.",
	},
	model.CategoryAuthentication: {
		retry:            false,
		fallbackProvider: true,
		circuitBreaker:   true,
		userNotification: true,
		severity:         model.SeverityCritical,
		userMessage:      "Service configuration issue. Support has been notified.",
	},
	model.CategoryQuotaExceeded: {
		retry:            false,
		fallbackProvider: true,
		circuitBreaker:   true,
		userNotification: true,
		severity:         model.SeverityCritical,
		userMessage:      "Service capacity has been reached. Support has been notified.",
	},
	model.CategoryServiceUnavailable: {
		retry:            true,
		delay:            10 * time.Second,
		fallbackProvider: true,
		circuitBreaker:   true,
		userNotification: false,
		severity:         model.SeverityError,
		userMessage:      "Service is temporarily unavailable, please try again shortly.",
	},
	model.CategoryNetwork: {
		retry:            true,
		delay:            2 * time.Second,
		fallbackProvider: true,
		circuitBreaker:   true,
		userNotification: false,
		severity:         model.SeverityWarning,
		userMessage:      "A network problem occurred, please try again.",
	},
	model.CategoryTimeout: {
		retry:            true,
		delay:            2 * time.Second,
		fallbackProvider: true,
		circuitBreaker:   true,
		userNotification: false,
		severity:         model.SeverityWarning,
		userMessage:      "The request took too long, please try again.",
	},
	model.CategoryInvalidRequest: {
		retry:            false,
		fallbackProvider: false,
		circuitBreaker:   false,
		userNotification: true,
		severity:         model.SeverityError,
		userMessage:      "The request could not be processed. Please check the input.",
	},
	model.CategoryContentPolicy: {
		retry:            false,
		fallbackProvider: true,
		circuitBreaker:   false,
		userNotification: true,
		severity:         model.SeverityWarning,
		userMessage:      "The content could not be analyzed due to content policies.",
	},
	model.CategoryUnknown: {
		retry:            true,
		delay:            2 * time.Second,
		fallbackProvider: true,
		circuitBreaker:   true,
		userNotification: false,
		severity:         model.SeverityError,
		userMessage:      "An unexpected problem occurred, please try again.",
	},
}

// ErrorClassifier maps provider failures to categories and recommended
// actions. Classification is pure: no state, no side effects.
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier.
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// Classify categorizes a failure by status code and message text and
// returns the category's policy row as a fresh classification.
func (c *ErrorClassifier) Classify(errMsg string, statusCode int) *model.Classification {
	category := c.categorize(errMsg, statusCode)
	action := categoryActions[category]

	return &model.Classification{
		Category:         category,
		Retry:            action.retry,
		Delay:            action.delay,
		FallbackProvider: action.fallbackProvider,
		CircuitBreaker:   action.circuitBreaker,
		UserNotification: action.userNotification,
		Severity:         action.severity,
		UserMessage:      action.userMessage,
	}
}

// ClassifyResult classifies a failed provider result. Calling it with
// a successful result is a programming error; it returns nil.
func (c *ErrorClassifier) ClassifyResult(res *model.ProviderResult) *model.Classification {
	if res == nil || res.Success {
		return nil
	}
	return c.Classify(res.Error, res.StatusCode)
}

// categorize resolves the first matching category: status code first,
// then ordered message patterns, then unknown.
func (c *ErrorClassifier) categorize(errMsg string, statusCode int) model.ErrorCategory {
	if category, ok := statusCategories[statusCode]; ok {
		return category
	}

	msg := strings.ToLower(errMsg)
	for _, cp := range messagePatterns {
		for _, pattern := range cp.patterns {
			if strings.Contains(msg, pattern) {
				return cp.category
			}
		}
	}

	return model.CategoryUnknown
}
