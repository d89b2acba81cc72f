// Package biz contains business logic layer implementations.
// This layer holds the resilience control loop and its collaborators.
package biz

import (
	"InferGate/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewErrorClassifier,
	NewRetryUseCase,
	NewProviderRegistry,
	NewOrchestratorUseCase,
	NewSelectorUseCase,
	NewHealthUseCase,
	NewValidatorUseCase,
	NewDegradationUseCase,
	NewAnalysisUseCase,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(ResilienceRepo), new(*data.ResilienceRepo)),
	wire.Bind(new(AlertRepo), new(*data.AlertRepo)),
	wire.Bind(new(AuditLogger), new(*data.AuditLoggerImpl)),
	wire.Bind(new(NotificationSink), new(*data.WebhookNotifier)),
)
