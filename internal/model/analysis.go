package model

import "time"

// OperationType identifies the kind of content an analysis operates on.
// It selects the fallback chain and the validation rule set.
type OperationType string

const (
	OperationReceipt  OperationType = "receipt"
	OperationDocument OperationType = "document"
)

// FallbackProviderName is the provider key reported by degraded,
// pattern-based analysis results.
const FallbackProviderName = "fallback"

// ProviderResult is the typed outcome of one provider analyze call.
// Providers signal failure through Success/Error rather than raised
// errors so the fallback loop stays ordinary control flow.
type ProviderResult struct {
	Success      bool           `json:"success"`
	Data         map[string]any `json:"data,omitempty"`
	Error        string         `json:"error,omitempty"`
	StatusCode   int            `json:"status_code,omitempty"`
	Provider     string         `json:"provider"`
	Model        string         `json:"model,omitempty"`
	TokensUsed   int            `json:"tokens_used,omitempty"`
	CostEstimate float64        `json:"cost_estimate,omitempty"`
}

// AnalysisResult is the final outcome handed back to callers after
// resilience handling, validation, and (possibly) degradation.
type AnalysisResult struct {
	Data          map[string]any `json:"data"`
	Provider      string         `json:"provider"`
	Model         string         `json:"model,omitempty"`
	OperationType OperationType  `json:"operation_type"`
	// Confidence is >= 0.85 for AI-backed results and 0.3-0.6 for
	// degraded pattern-based extraction; callers branch on it.
	Confidence float64   `json:"confidence"`
	Degraded   bool      `json:"degraded"`
	Warnings   []string  `json:"warnings,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// ValidationResult is always returned, never thrown, by the output
// validator. On success Data holds the sanitized replacement for the
// raw response.
type ValidationResult struct {
	IsValid  bool           `json:"is_valid"`
	Data     map[string]any `json:"data"`
	Errors   []string       `json:"errors,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
