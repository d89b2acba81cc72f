package biz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"InferGate/internal/conf"
	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
)

// aiConfidence is the confidence reported for AI-backed results that
// passed validation.
const aiConfidence = 0.9

// AnalyzeRequest is one analysis invocation.
type AnalyzeRequest struct {
	Content       string
	OperationType model.OperationType
	// PreferredProvider is promoted to the front of the fallback chain.
	PreferredProvider string
	// Requirements selects the model profile; nil uses provider defaults.
	Requirements *model.ModelRequirements
	Options      map[string]any
}

// InvalidOutputError is raised when a provider's response fails
// validation and no degraded result is produced.
type InvalidOutputError struct {
	Provider string
	Errors   []string
}

// Error implements the error interface.
func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("provider %s output failed validation: %v", e.Provider, e.Errors)
}

// AnalysisUseCase is the engine's front door: model selection upstream
// of the resilience loop, orchestrated execution across the fallback
// chain, uniform output validation, and degraded extraction as the
// last resort.
type AnalysisUseCase struct {
	orchestrator *OrchestratorUseCase
	selector     *SelectorUseCase
	validator    *ValidatorUseCase
	degradation  *DegradationUseCase
	audit        AuditLogger
	cfg          *conf.Resilience
	logger       *log.Helper
}

// NewAnalysisUseCase creates the analysis pipeline.
func NewAnalysisUseCase(
	orchestrator *OrchestratorUseCase,
	selector *SelectorUseCase,
	validator *ValidatorUseCase,
	degradation *DegradationUseCase,
	audit AuditLogger,
	c *conf.Resilience,
	logger log.Logger,
) *AnalysisUseCase {
	return &AnalysisUseCase{
		orchestrator: orchestrator,
		selector:     selector,
		validator:    validator,
		degradation:  degradation,
		audit:        audit,
		cfg:          c,
		logger:       log.NewHelper(logger),
	}
}

// Analyze runs one analysis end to end. Model selection failures are
// surfaced as-is (a requirements problem, not a transient fault);
// provider exhaustion degrades to pattern extraction unless disabled.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, req *AnalyzeRequest) (*model.AnalysisResult, error) {
	if req.Content == "" {
		return nil, fmt.Errorf("content cannot be empty")
	}

	options := req.Options
	preferred := req.PreferredProvider

	if req.Requirements != nil {
		descriptor, err := uc.selector.SelectOptimalModel(ctx, string(req.OperationType), req.Requirements)
		if err != nil {
			return nil, err
		}
		if options == nil {
			options = map[string]any{}
		}
		options["model"] = descriptor.Name
		if preferred == "" {
			preferred = descriptor.Provider
		}
	}

	result, err := uc.orchestrator.ExecuteWithResilience(ctx, req.OperationType, preferred,
		func(provider string, client ProviderClient) Operation {
			return func(ctx context.Context) (*model.ProviderResult, error) {
				if client == nil {
					return nil, fmt.Errorf("no client for provider %s", provider)
				}
				return client.Analyze(ctx, req.Content, req.OperationType, options)
			}
		})

	if err != nil {
		var exhausted *AllProvidersExhaustedError
		if errors.As(err, &exhausted) && uc.cfg.DegradationEnabled && degradable(exhausted) {
			return uc.degrade(ctx, req, exhausted), nil
		}
		return nil, err
	}

	return uc.finalize(result, req.OperationType)
}

// finalize validates the provider response and assembles the caller
// result from the sanitized data.
func (uc *AnalysisUseCase) finalize(result *model.ProviderResult, opType model.OperationType) (*model.AnalysisResult, error) {
	validation := uc.validator.ValidateOutput(result.Data, opType)
	if !validation.IsValid {
		uc.logger.Errorw("provider output failed validation",
			"type", "validation",
			"provider", result.Provider,
			"errors", validation.Errors)
		return nil, &InvalidOutputError{Provider: result.Provider, Errors: validation.Errors}
	}

	uc.logger.Infow("analysis completed",
		"type", "success",
		"provider", result.Provider,
		"operation", string(opType),
		"warnings", len(validation.Warnings))

	return &model.AnalysisResult{
		Data:          validation.Data,
		Provider:      result.Provider,
		Model:         result.Model,
		OperationType: opType,
		Confidence:    aiConfidence,
		Degraded:      false,
		Warnings:      validation.Warnings,
		AnalyzedAt:    time.Now(),
	}, nil
}

// degradable reports whether the chain failure warrants degraded
// extraction. A final failure whose category forbids provider fallback
// is an input problem; fabricating a low-confidence result would mask
// the caller's actual mistake, so the error is surfaced instead.
func degradable(exhausted *AllProvidersExhaustedError) bool {
	c := exhausted.LastClassification
	return c == nil || c.FallbackProvider
}

// degrade produces the pattern-based fallback result after provider
// exhaustion, audits the activation, and folds validation findings
// into the result's warnings without blocking it.
func (uc *AnalysisUseCase) degrade(ctx context.Context, req *AnalyzeRequest, exhausted *AllProvidersExhaustedError) *model.AnalysisResult {
	uc.logger.Warnw("all providers exhausted, activating degraded analysis",
		"type", "degraded",
		"operation", string(req.OperationType),
		"tried", len(exhausted.Tried),
		"last_error", exhausted.LastError)

	uc.audit.LogDegradationActivated(ctx, &model.DegradationEvent{
		OperationType:  req.OperationType,
		TriedProviders: exhausted.Tried,
		LastError:      exhausted.LastError,
		OccurredAt:     time.Now(),
	})

	result := uc.degradation.ProvideFallbackAnalysis(ctx, req.Content, req.OperationType)

	// Degraded results are structurally valid by construction; any
	// validation findings are surfaced as warnings only.
	validation := uc.validator.ValidateOutput(result.Data, req.OperationType)
	if validation.IsValid {
		result.Data = validation.Data
	}
	result.Warnings = append(result.Warnings, validation.Errors...)
	result.Warnings = append(result.Warnings, validation.Warnings...)

	return result
}
