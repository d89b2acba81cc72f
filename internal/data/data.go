// Package data provides data access layer implementations.
// It handles Redis and MySQL connections and resilience state persistence.
package data

import (
	"github.com/google/wire"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewRedisClient,
	NewCacheClient,
	NewMySQLClient,
	NewResilienceRepo,
	NewAlertRepo,
	NewAuditLogger,
	NewWebhookNotifier,
)
