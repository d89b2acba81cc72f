package biz

import (
	"context"
	"time"

	"InferGate/internal/conf"
	"InferGate/internal/model"
	"InferGate/pkg/aiclient"

	"github.com/go-kratos/kratos/v2/log"
)

// ProviderClient is the thin per-vendor analysis client boundary. The
// engine never sees vendor wire formats; failures are signaled through
// the result's Success flag.
type ProviderClient interface {
	Analyze(ctx context.Context, content string, opType model.OperationType, options map[string]any) (*model.ProviderResult, error)
}

// ProviderRegistry holds the configured provider clients keyed by
// provider name, plus the enabled flags and breaker timeouts from
// configuration. It is immutable after construction.
type ProviderRegistry struct {
	clients map[string]ProviderClient
	configs map[string]*conf.Provider
	names   []string
	logger  *log.Helper
}

// NewProviderRegistry builds a client per configured provider. A
// provider whose client cannot be constructed (bad proxy URL, missing
// endpoint) is registered as disabled rather than failing startup.
func NewProviderRegistry(c *conf.Resilience, logger log.Logger) *ProviderRegistry {
	helper := log.NewHelper(logger)

	r := &ProviderRegistry{
		clients: make(map[string]ProviderClient),
		configs: make(map[string]*conf.Provider),
		logger:  helper,
	}

	for _, p := range c.Providers {
		r.configs[p.Name] = p
		r.names = append(r.names, p.Name)

		client, err := aiclient.New(aiclient.Options{
			Endpoint: p.Endpoint,
			APIKey:   p.ApiKey,
			ProxyURL: p.ProxyUrl,
			Timeout:  time.Duration(p.TimeoutSeconds) * time.Second,
			Provider: p.Name,
		})
		if err != nil {
			helper.Errorw("failed to build provider client, provider disabled",
				"type", "provider",
				"provider", p.Name,
				"error", err)
			continue
		}

		r.clients[p.Name] = client
		helper.Infow("provider registered",
			"type", "provider",
			"provider", p.Name,
			"enabled", p.Enabled)
	}

	return r
}

// Client returns the client for a provider, or nil when the provider
// is unknown or its client could not be built.
func (r *ProviderRegistry) Client(name string) ProviderClient {
	return r.clients[name]
}

// Enabled reports whether a provider is administratively enabled and
// has a usable client.
func (r *ProviderRegistry) Enabled(name string) bool {
	cfg, ok := r.configs[name]
	if !ok || !cfg.Enabled {
		return false
	}
	_, ok = r.clients[name]
	return ok
}

// BreakerTimeout returns the provider-specific breaker open duration
// in seconds, falling back to the given default when unset.
func (r *ProviderRegistry) BreakerTimeout(name string, defaultSeconds int) int {
	if cfg, ok := r.configs[name]; ok && cfg.BreakerTimeoutSeconds > 0 {
		return cfg.BreakerTimeoutSeconds
	}
	return defaultSeconds
}

// Names returns all configured provider names in declaration order,
// including disabled ones (the health monitor reports on all of them).
func (r *ProviderRegistry) Names() []string {
	return r.names
}
