package biz

import (
	"context"
	"fmt"
	"time"

	"InferGate/internal/conf"
	"InferGate/internal/data"
	"InferGate/internal/model"
	plog "InferGate/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
)

// minHealthSamples gates metric-based issues; below it a provider has
// too little traffic to judge and reads as healthy.
const minHealthSamples = 5

// severityRank orders severities for worst-issue alert ranking.
var severityRank = map[model.Severity]int{
	model.SeverityInfo:     0,
	model.SeverityWarning:  1,
	model.SeverityError:    2,
	model.SeverityCritical: 3,
}

// HealthUseCase periodically evaluates rolling provider metrics
// against thresholds, caches advisory verdicts, and raises alerts.
// Its verdicts never block request execution: the orchestrator treats
// a stale or missing verdict as healthy.
type HealthUseCase struct {
	repo     ResilienceRepo
	alerts   AlertRepo
	audit    AuditLogger
	notifier NotificationSink
	cache    data.CacheClient
	registry *ProviderRegistry
	cfg      *conf.Health
	logger   *log.Helper
}

// NewHealthUseCase creates the health monitor.
func NewHealthUseCase(
	repo ResilienceRepo,
	alerts AlertRepo,
	audit AuditLogger,
	notifier NotificationSink,
	cache data.CacheClient,
	registry *ProviderRegistry,
	c *conf.Health,
	logger log.Logger,
) *HealthUseCase {
	return &HealthUseCase{
		repo:     repo,
		alerts:   alerts,
		audit:    audit,
		notifier: notifier,
		cache:    cache,
		registry: registry,
		cfg:      c,
		logger:   log.NewHelper(logger),
	}
}

// CheckHealth evaluates every configured provider and returns the
// snapshots. A provider whose evaluation fails is skipped with a
// warning rather than failing the whole sweep.
func (uc *HealthUseCase) CheckHealth(ctx context.Context) ([]*model.HealthSnapshot, error) {
	providers := uc.registry.Names()
	snapshots := make([]*model.HealthSnapshot, 0, len(providers))

	for _, provider := range providers {
		snapshot, err := uc.CheckProvider(ctx, provider)
		if err != nil {
			uc.logger.Warnw("provider health check failed",
				"type", "health",
				"provider", provider,
				"error", err)
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// CheckProvider evaluates one provider: rolling metrics against the
// three thresholds, plus a critical issue when its breaker is open.
// The verdict is cached briefly for the orchestrator's advisory check.
func (uc *HealthUseCase) CheckProvider(ctx context.Context, provider string) (*model.HealthSnapshot, error) {
	metrics, err := uc.repo.GetProviderMetrics(ctx, provider,
		[]model.OperationType{model.OperationReceipt, model.OperationDocument})
	if err != nil {
		return nil, fmt.Errorf("failed to read provider metrics: %w", err)
	}

	issues := uc.evaluateIssues(ctx, provider, metrics)

	snapshot := &model.HealthSnapshot{
		Provider:  provider,
		Healthy:   len(issues) == 0,
		Issues:    issues,
		Metrics:   metrics,
		CheckedAt: time.Now(),
	}

	uc.cacheVerdict(ctx, snapshot)

	if !snapshot.Healthy {
		uc.raiseAlert(ctx, snapshot)
	}

	return snapshot, nil
}

// evaluateIssues compares metrics against the configured thresholds
// and surfaces an open circuit breaker as an additional critical issue
// regardless of metric state.
func (uc *HealthUseCase) evaluateIssues(ctx context.Context, provider string, metrics *model.ProviderMetrics) []model.HealthIssue {
	var issues []model.HealthIssue

	if metrics.Total >= minHealthSamples {
		if rate := metrics.ErrorRate(); rate > uc.cfg.MaxErrorRate {
			issues = append(issues, model.HealthIssue{
				Type:      model.IssueHighErrorRate,
				Value:     rate,
				Threshold: uc.cfg.MaxErrorRate,
				Severity:  model.SeverityError,
			})
		}
		if availability := metrics.Availability(); availability < uc.cfg.MinAvailability {
			issues = append(issues, model.HealthIssue{
				Type:      model.IssueLowAvailability,
				Value:     availability,
				Threshold: uc.cfg.MinAvailability,
				Severity:  model.SeverityError,
			})
		}
	}

	if metrics.AvgResponseTimeMs > float64(uc.cfg.MaxResponseTimeMs) {
		issues = append(issues, model.HealthIssue{
			Type:      model.IssueSlowResponse,
			Value:     metrics.AvgResponseTimeMs,
			Threshold: float64(uc.cfg.MaxResponseTimeMs),
			Severity:  model.SeverityWarning,
		})
	}

	state, err := uc.repo.GetBreakerState(ctx, provider)
	if err != nil {
		uc.logger.Warnw("breaker state read failed during health check",
			"type", "health",
			"provider", provider,
			"error", err)
	} else if state != nil && state.Open && !state.Expired(time.Now()) {
		issues = append(issues, model.HealthIssue{
			Type:     model.IssueCircuitBreakerOpen,
			Severity: model.SeverityCritical,
		})
	}

	return issues
}

// cacheVerdict stores the snapshot for the orchestrator's advisory
// skip check. Cache failures are logged; the verdict path fails open.
func (uc *HealthUseCase) cacheVerdict(ctx context.Context, snapshot *model.HealthSnapshot) {
	ttl := data.TTLHealthVerdict
	if uc.cfg.VerdictTTLSeconds > 0 {
		ttl = time.Duration(uc.cfg.VerdictTTLSeconds) * time.Second
	}

	key := data.BuildCacheKey(data.CacheKeyHealthVerdict, snapshot.Provider)
	if err := uc.cache.Set(ctx, key, snapshot, ttl); err != nil {
		uc.logger.Warnw("failed to cache health verdict",
			"type", "health",
			"provider", snapshot.Provider,
			"error", err)
	}
}

// raiseAlert appends one alert per unhealthy provider (ranked by its
// worst issue) to the ring buffer, audits it, and routes high-severity
// alerts to the notification sink. Sink failures never propagate.
func (uc *HealthUseCase) raiseAlert(ctx context.Context, snapshot *model.HealthSnapshot) {
	severity := worstSeverity(snapshot.Issues)

	alert := &model.Alert{
		ID:        plog.GenerateRequestID(),
		Provider:  snapshot.Provider,
		Severity:  severity,
		Title:     fmt.Sprintf("Provider %s is unhealthy", snapshot.Provider),
		Message:   issueSummary(snapshot.Issues),
		Issues:    snapshot.Issues,
		Metrics:   snapshot.Metrics,
		CreatedAt: time.Now(),
	}

	uc.logger.Warnw("provider unhealthy",
		"type", "alert",
		"provider", snapshot.Provider,
		"severity", string(severity),
		"issues", len(snapshot.Issues))

	if err := uc.alerts.Append(ctx, alert); err != nil {
		uc.logger.Errorw("failed to append alert",
			"type", "alert",
			"provider", snapshot.Provider,
			"error", err)
	}

	uc.audit.LogAlertRaised(ctx, alert)

	if severityRank[severity] >= severityRank[model.SeverityError] {
		if err := uc.notifier.Send(ctx, alert); err != nil {
			uc.logger.Errorw("alert notification failed",
				"type", "alert",
				"provider", snapshot.Provider,
				"error", err)
		}
	}
}

// RecentAlerts lists the newest alerts from the ring buffer.
func (uc *HealthUseCase) RecentAlerts(ctx context.Context, limit int) ([]*model.Alert, error) {
	return uc.alerts.List(ctx, limit)
}

// worstSeverity returns the highest-ranked severity among the issues.
func worstSeverity(issues []model.HealthIssue) model.Severity {
	worst := model.SeverityInfo
	for _, issue := range issues {
		if severityRank[issue.Severity] > severityRank[worst] {
			worst = issue.Severity
		}
	}
	return worst
}

// issueSummary renders a short human-readable issue list.
func issueSummary(issues []model.HealthIssue) string {
	summary := ""
	for i, issue := range issues {
		if i > 0 {
			summary += "; "
		}
		switch issue.Type {
		case model.IssueCircuitBreakerOpen:
			summary += "circuit breaker open"
		default:
			summary += fmt.Sprintf("%s: %.2f (threshold %.2f)", issue.Type, issue.Value, issue.Threshold)
		}
	}
	return summary
}
