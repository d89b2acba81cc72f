package biz

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"InferGate/internal/conf"
	"InferGate/internal/data"
	"InferGate/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures notified alerts.
type recordingSink struct {
	mu   sync.Mutex
	sent []*model.Alert
}

func (s *recordingSink) Send(_ context.Context, alert *model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, alert)
	return nil
}

type healthFixture struct {
	uc    *HealthUseCase
	repo  *data.ResilienceRepo
	cache data.CacheClient
	sink  *recordingSink
	audit *recordingAuditLogger
	mr    *miniredis.Miniredis
}

func newHealthFixture(t *testing.T) *healthFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := log.NewStdLogger(os.Stdout)

	repo := data.NewResilienceRepo(rdb, logger)
	alerts := data.NewAlertRepo(rdb, logger)
	cache := data.NewCacheClient(rdb)
	registry := NewProviderRegistry(testResilienceConf(), logger)
	sink := &recordingSink{}
	audit := &recordingAuditLogger{}

	healthConf := &conf.Health{
		CheckIntervalSeconds: 60,
		MaxErrorRate:         0.1,
		MaxResponseTimeMs:    10000,
		MinAvailability:      0.95,
		VerdictTTLSeconds:    30,
	}

	uc := NewHealthUseCase(repo, alerts, audit, sink, cache, registry, healthConf, logger)
	return &healthFixture{uc: uc, repo: repo, cache: cache, sink: sink, audit: audit, mr: mr}
}

func TestCheckProvider_HealthyWithNoTraffic(t *testing.T) {
	f := newHealthFixture(t)

	snapshot, err := f.uc.CheckProvider(context.Background(), "openai")
	require.NoError(t, err)
	assert.True(t, snapshot.Healthy, "no traffic means nothing to judge")
	assert.Empty(t, snapshot.Issues)
}

func TestCheckProvider_HighErrorRateFlagged(t *testing.T) {
	f := newHealthFixture(t)
	ctx := context.Background()

	// 4 failures out of 10 is well past the 0.1 ceiling.
	for i := 0; i < 6; i++ {
		require.NoError(t, f.repo.IncrementSuccess(ctx, "openai", model.OperationReceipt))
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, f.repo.IncrementFailure(ctx, "openai", model.OperationReceipt))
	}

	snapshot, err := f.uc.CheckProvider(ctx, "openai")
	require.NoError(t, err)
	assert.False(t, snapshot.Healthy)

	types := issueTypes(snapshot.Issues)
	assert.Contains(t, types, model.IssueHighErrorRate)
	assert.Contains(t, types, model.IssueLowAvailability)
}

func TestCheckProvider_SlowResponseIsWarning(t *testing.T) {
	f := newHealthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.RecordLatency(ctx, "openai", 15*time.Second))

	snapshot, err := f.uc.CheckProvider(ctx, "openai")
	require.NoError(t, err)
	assert.False(t, snapshot.Healthy)
	require.Len(t, snapshot.Issues, 1)
	assert.Equal(t, model.IssueSlowResponse, snapshot.Issues[0].Type)
	assert.Equal(t, model.SeverityWarning, snapshot.Issues[0].Severity)

	// Warnings alone do not reach the notification sink.
	assert.Empty(t, f.sink.sent)
}

func TestCheckProvider_OpenBreakerIsCriticalIssue(t *testing.T) {
	f := newHealthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.OpenBreaker(ctx, "openai", &model.CircuitBreakerState{
		Open:           true,
		OpenedAt:       time.Now(),
		TimeoutSeconds: 300,
		Reason:         "test",
	}))

	snapshot, err := f.uc.CheckProvider(ctx, "openai")
	require.NoError(t, err)
	assert.False(t, snapshot.Healthy)

	types := issueTypes(snapshot.Issues)
	assert.Contains(t, types, model.IssueCircuitBreakerOpen)

	// Critical alerts reach the sink and the audit trail.
	require.NotEmpty(t, f.sink.sent)
	assert.Equal(t, model.SeverityCritical, f.sink.sent[0].Severity)
	assert.NotEmpty(t, f.audit.alerts)
}

func TestCheckProvider_VerdictCached(t *testing.T) {
	f := newHealthFixture(t)
	ctx := context.Background()

	_, err := f.uc.CheckProvider(ctx, "openai")
	require.NoError(t, err)

	var cached model.HealthSnapshot
	key := data.BuildCacheKey(data.CacheKeyHealthVerdict, "openai")
	require.NoError(t, f.cache.Get(ctx, key, &cached))
	assert.Equal(t, "openai", cached.Provider)
	assert.True(t, cached.Healthy)
}

func TestCheckHealth_CoversAllConfiguredProviders(t *testing.T) {
	f := newHealthFixture(t)

	snapshots, err := f.uc.CheckHealth(context.Background())
	require.NoError(t, err)
	// All configured providers are reported, disabled ones included.
	assert.Len(t, snapshots, 3)
}

func TestRecentAlerts_ListsRaisedAlerts(t *testing.T) {
	f := newHealthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.OpenBreaker(ctx, "openai", &model.CircuitBreakerState{
		Open:           true,
		OpenedAt:       time.Now(),
		TimeoutSeconds: 300,
	}))
	_, err := f.uc.CheckProvider(ctx, "openai")
	require.NoError(t, err)

	alerts, err := f.uc.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	assert.Equal(t, "openai", alerts[0].Provider)
}

func TestWorstSeverity(t *testing.T) {
	issues := []model.HealthIssue{
		{Severity: model.SeverityWarning},
		{Severity: model.SeverityCritical},
		{Severity: model.SeverityError},
	}
	assert.Equal(t, model.SeverityCritical, worstSeverity(issues))
	assert.Equal(t, model.SeverityInfo, worstSeverity(nil))
}

func issueTypes(issues []model.HealthIssue) []model.HealthIssueType {
	types := make([]model.HealthIssueType, 0, len(issues))
	for _, issue := range issues {
		types = append(types, issue.Type)
	}
	return types
}
