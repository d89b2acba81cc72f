package biz

import (
	"context"
	"os"
	"testing"

	"InferGate/internal/conf"
	"InferGate/internal/data"
	"InferGate/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModelRegistry() []*conf.ModelEntry {
	return []*conf.ModelEntry{
		{
			Name:                 "gpt-4o",
			Provider:             "openai",
			SupportedTasks:       []string{"receipt", "document"},
			Features:             map[string]bool{"vision": true, "json_mode": true},
			InputCostPerMillion:  2.5,
			OutputCostPerMillion: 10.0,
			QualityRating:        4.7,
			SpeedRating:          4.2,
			CostEfficiency:       3.8,
			AvailabilityPct:      99.5,
		},
		{
			Name:                 "gpt-4o-mini",
			Provider:             "openai",
			SupportedTasks:       []string{"receipt", "document"},
			Features:             map[string]bool{"vision": true, "json_mode": true},
			InputCostPerMillion:  0.15,
			OutputCostPerMillion: 0.6,
			QualityRating:        4.1,
			SpeedRating:          4.8,
			CostEfficiency:       4.9,
			AvailabilityPct:      99.5,
		},
		{
			Name:                 "claude-sonnet",
			Provider:             "anthropic",
			SupportedTasks:       []string{"document"},
			Features:             map[string]bool{"json_mode": true},
			InputCostPerMillion:  3.0,
			OutputCostPerMillion: 15.0,
			QualityRating:        4.8,
			SpeedRating:          4.0,
			CostEfficiency:       3.5,
			AvailabilityPct:      99.0,
		},
		{
			Name:                 "flaky-model",
			Provider:             "flaky",
			SupportedTasks:       []string{"receipt", "document"},
			InputCostPerMillion:  0.1,
			OutputCostPerMillion: 0.4,
			QualityRating:        4.9,
			SpeedRating:          4.9,
			CostEfficiency:       5.0,
			AvailabilityPct:      99.9,
			KnownIssues:          []string{"critical"},
		},
	}
}

func newTestSelector(t *testing.T) (*SelectorUseCase, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := log.NewStdLogger(os.Stdout)
	repo := data.NewResilienceRepo(rdb, logger)
	cache := data.NewCacheClient(rdb)

	uc := NewSelectorUseCase(&conf.Selection{
		Models:          testModelRegistry(),
		CacheTTLSeconds: 300,
	}, repo, cache, logger)

	return uc, mr
}

func TestSelect_BudgetCeilingRespected(t *testing.T) {
	uc, _ := newTestSelector(t)

	got, err := uc.SelectOptimalModel(context.Background(), "receipt", &model.ModelRequirements{
		Budget:   model.BudgetEconomy,
		Provider: "openai",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", got.Name)
	assert.LessOrEqual(t, got.AverageCostPerMillion(), budgetCeilings[model.BudgetEconomy])
}

func TestSelect_QualityFloorRespected(t *testing.T) {
	uc, _ := newTestSelector(t)

	got, err := uc.SelectOptimalModel(context.Background(), "document", &model.ModelRequirements{
		Quality:  model.QualityPremium,
		Provider: "anthropic",
	})
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet", got.Name)
	assert.GreaterOrEqual(t, got.QualityRating, qualityFloors[model.QualityPremium])
}

func TestSelect_NoSuitableModel(t *testing.T) {
	uc, _ := newTestSelector(t)

	_, err := uc.SelectOptimalModel(context.Background(), "receipt", &model.ModelRequirements{
		Provider: "anthropic", // claude-sonnet does not support receipt
	})

	var noModel *NoSuitableModelError
	require.ErrorAs(t, err, &noModel)
	assert.Equal(t, "receipt", noModel.Task)
}

func TestSelect_UnsupportedTaskNeverReturned(t *testing.T) {
	uc, _ := newTestSelector(t)

	got, err := uc.SelectOptimalModel(context.Background(), "receipt", &model.ModelRequirements{
		Priority: model.PriorityQuality,
	})
	require.NoError(t, err)
	assert.True(t, got.SupportsTask("receipt"))
}

func TestSelect_KnownIssuePenaltyDiscountsModel(t *testing.T) {
	uc, _ := newTestSelector(t)

	// flaky-model has the best static ratings across the board, but the
	// critical known issue halves its score.
	got, err := uc.SelectOptimalModel(context.Background(), "receipt", &model.ModelRequirements{
		Priority: model.PriorityCost,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "flaky-model", got.Name)
}

func TestSelect_CostPriorityPrefersCheapModel(t *testing.T) {
	uc, _ := newTestSelector(t)

	got, err := uc.SelectOptimalModel(context.Background(), "receipt", &model.ModelRequirements{
		Priority: model.PriorityCost,
		Provider: "openai",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", got.Name)
}

func TestSelect_FeatureMismatchLowersScore(t *testing.T) {
	uc, _ := newTestSelector(t)

	got, err := uc.SelectOptimalModel(context.Background(), "document", &model.ModelRequirements{
		Features: []string{"vision"},
		Priority: model.PriorityBalanced,
	})
	require.NoError(t, err)
	assert.True(t, got.Features["vision"])
}

func TestSelect_ResultIsCached(t *testing.T) {
	uc, mr := newTestSelector(t)
	ctx := context.Background()

	req := &model.ModelRequirements{Budget: model.BudgetStandard}

	first, err := uc.SelectOptimalModel(ctx, "receipt", req)
	require.NoError(t, err)

	// The Redis entry exists under the selection prefix.
	found := false
	for _, key := range mr.Keys() {
		if len(key) > 10 && key[:10] == "selection:" {
			found = true
		}
	}
	assert.True(t, found, "selection should be cached in Redis")

	second, err := uc.SelectOptimalModel(ctx, "receipt", req)
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)
}

func TestSelect_DeterministicTieBreakByDeclarationOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := log.NewStdLogger(os.Stdout)

	twin := func(name string) *conf.ModelEntry {
		return &conf.ModelEntry{
			Name:                 name,
			Provider:             "openai",
			SupportedTasks:       []string{"receipt"},
			InputCostPerMillion:  1.0,
			OutputCostPerMillion: 1.0,
			QualityRating:        4.5,
			SpeedRating:          4.5,
			CostEfficiency:       4.0,
			AvailabilityPct:      99.0,
		}
	}

	uc := NewSelectorUseCase(&conf.Selection{
		Models: []*conf.ModelEntry{twin("first-declared"), twin("second-declared")},
	}, data.NewResilienceRepo(rdb, logger), data.NewCacheClient(rdb), logger)

	got, err := uc.SelectOptimalModel(context.Background(), "receipt", nil)
	require.NoError(t, err)
	assert.Equal(t, "first-declared", got.Name)
}

func TestSelect_EmpiricalSuccessRateAdjustsPerformance(t *testing.T) {
	uc, _ := newTestSelector(t)
	ctx := context.Background()

	// Without samples the static ratings alone decide; scoring must not
	// error when metrics exist either.
	rdbRepo := uc.repo
	for i := 0; i < 10; i++ {
		require.NoError(t, rdbRepo.IncrementSuccess(ctx, "openai", model.OperationReceipt))
	}

	got, err := uc.SelectOptimalModel(ctx, "receipt", &model.ModelRequirements{Provider: "openai"})
	require.NoError(t, err)
	assert.Equal(t, "openai", got.Provider)
}
