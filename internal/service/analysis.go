package service

import (
	"context"
	"errors"
	"time"

	"InferGate/internal/biz"
	"InferGate/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// AnalyzeRequest is the HTTP request body for POST /v1/analyze.
type AnalyzeRequest struct {
	Content           string                   `json:"content"`
	OperationType     string                   `json:"operation_type"`
	PreferredProvider string                   `json:"preferred_provider,omitempty"`
	Requirements      *model.ModelRequirements `json:"requirements,omitempty"`
	Options           map[string]any           `json:"options,omitempty"`
}

// HealthResponse is the response body for GET /v1/health.
type HealthResponse struct {
	Healthy   bool                    `json:"healthy"`
	Providers []*model.HealthSnapshot `json:"providers"`
	CheckedAt time.Time               `json:"checked_at"`
}

// AlertsResponse is the response body for GET /v1/alerts.
type AlertsResponse struct {
	Alerts []*model.Alert `json:"alerts"`
}

// ProviderStatus is one entry of GET /v1/providers.
type ProviderStatus struct {
	Name          string                 `json:"name"`
	Enabled       bool                   `json:"enabled"`
	BreakerOpen   bool                   `json:"breaker_open"`
	BreakerReason string                 `json:"breaker_reason,omitempty"`
	Metrics       *model.ProviderMetrics `json:"metrics,omitempty"`
}

// ProvidersResponse is the response body for GET /v1/providers.
type ProvidersResponse struct {
	Providers []*ProviderStatus `json:"providers"`
}

// AnalysisService exposes the resilience engine over HTTP.
type AnalysisService struct {
	analysis *biz.AnalysisUseCase
	health   *biz.HealthUseCase
	registry *biz.ProviderRegistry
	repo     biz.ResilienceRepo
	logger   *log.Helper
}

// NewAnalysisService creates the analysis service.
func NewAnalysisService(
	analysis *biz.AnalysisUseCase,
	health *biz.HealthUseCase,
	registry *biz.ProviderRegistry,
	repo biz.ResilienceRepo,
	logger log.Logger,
) *AnalysisService {
	return &AnalysisService{
		analysis: analysis,
		health:   health,
		registry: registry,
		repo:     repo,
		logger:   log.NewHelper(logger),
	}
}

// Analyze runs one analysis through the resilience engine.
func (s *AnalysisService) Analyze(ctx context.Context, req *AnalyzeRequest) (*model.AnalysisResult, error) {
	if req.Content == "" {
		return nil, kerrors.New(400, "EMPTY_CONTENT", "content cannot be empty")
	}

	opType := model.OperationType(req.OperationType)
	switch opType {
	case model.OperationReceipt, model.OperationDocument:
	case "":
		opType = model.OperationReceipt
	default:
		return nil, kerrors.New(400, "UNKNOWN_OPERATION_TYPE", "operation_type must be receipt or document")
	}

	result, err := s.analysis.Analyze(ctx, &biz.AnalyzeRequest{
		Content:           req.Content,
		OperationType:     opType,
		PreferredProvider: req.PreferredProvider,
		Requirements:      req.Requirements,
		Options:           req.Options,
	})
	if err != nil {
		return nil, s.toTransportError(err)
	}

	return result, nil
}

// Health evaluates all providers and returns the snapshots.
func (s *AnalysisService) Health(ctx context.Context) (*HealthResponse, error) {
	snapshots, err := s.health.CheckHealth(ctx)
	if err != nil {
		return nil, kerrors.New(500, "HEALTH_CHECK_FAILED", err.Error())
	}

	healthy := true
	for _, snapshot := range snapshots {
		if !snapshot.Healthy {
			healthy = false
			break
		}
	}

	return &HealthResponse{
		Healthy:   healthy,
		Providers: snapshots,
		CheckedAt: time.Now(),
	}, nil
}

// Alerts lists the most recent alerts from the ring buffer.
func (s *AnalysisService) Alerts(ctx context.Context, limit int) (*AlertsResponse, error) {
	alerts, err := s.health.RecentAlerts(ctx, limit)
	if err != nil {
		return nil, kerrors.New(500, "ALERTS_UNAVAILABLE", err.Error())
	}
	return &AlertsResponse{Alerts: alerts}, nil
}

// Providers lists every configured provider with its breaker state and
// rolling metrics. Store read failures degrade to a partial listing.
func (s *AnalysisService) Providers(ctx context.Context) (*ProvidersResponse, error) {
	names := s.registry.Names()
	statuses := make([]*ProviderStatus, 0, len(names))

	for _, name := range names {
		status := &ProviderStatus{
			Name:    name,
			Enabled: s.registry.Enabled(name),
		}

		if state, err := s.repo.GetBreakerState(ctx, name); err == nil && state != nil && state.Open && !state.Expired(time.Now()) {
			status.BreakerOpen = true
			status.BreakerReason = state.Reason
		}

		if metrics, err := s.repo.GetProviderMetrics(ctx, name,
			[]model.OperationType{model.OperationReceipt, model.OperationDocument}); err == nil {
			status.Metrics = metrics
		}

		statuses = append(statuses, status)
	}

	return &ProvidersResponse{Providers: statuses}, nil
}

// toTransportError maps engine failures to transport errors with
// non-technical user messages; vendor error text stays in logs only.
func (s *AnalysisService) toTransportError(err error) error {
	var noModel *biz.NoSuitableModelError
	if errors.As(err, &noModel) {
		return kerrors.New(422, "NO_SUITABLE_MODEL", "No model matches the requested requirements.")
	}

	var invalid *biz.InvalidOutputError
	if errors.As(err, &invalid) {
		return kerrors.New(502, "INVALID_PROVIDER_OUTPUT", "The analysis result could not be validated, please try again.")
	}

	var exhausted *biz.AllProvidersExhaustedError
	if errors.As(err, &exhausted) {
		msg := "Service is temporarily unavailable, please try again."
		if exhausted.LastClassification != nil && exhausted.LastClassification.UserMessage != "" {
			msg = exhausted.LastClassification.UserMessage
		}
		s.logger.Errorw("analysis exhausted all providers",
			"type", "fallback",
			"operation", string(exhausted.OperationType),
			"tried", len(exhausted.Tried),
			"last_error", exhausted.LastError)
		return kerrors.New(503, "ALL_PROVIDERS_EXHAUSTED", msg)
	}

	return kerrors.New(500, "ANALYSIS_FAILED", "An unexpected problem occurred, please try again.")
}
