package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"InferGate/internal/conf"
	"InferGate/internal/data"
	"InferGate/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// defaultAvailabilityFloor is the minimum static availability rating
// (0-100) a candidate must meet when the caller does not override it.
const defaultAvailabilityFloor = 95.0

// selectionLRUSize bounds the in-process selection cache.
const selectionLRUSize = 128

// minEmpiricalSamples gates blending observed success rates into the
// performance sub-score; below it only static ratings are used.
const minEmpiricalSamples = 5

// budgetCeilings caps the average per-million-token cost per tier.
var budgetCeilings = map[model.BudgetTier]float64{
	model.BudgetEconomy:   2.0,
	model.BudgetStandard:  10.0,
	model.BudgetPremium:   50.0,
	model.BudgetUnlimited: math.Inf(1),
}

// qualityFloors sets the minimum quality rating (0-5) per tier.
var qualityFloors = map[model.QualityTier]float64{
	model.QualityBasic:    3.0,
	model.QualityStandard: 4.0,
	model.QualityHigh:     4.3,
	model.QualityPremium:  4.6,
}

// scoreWeights is one weight profile over the four sub-scores.
type scoreWeights struct {
	performance float64
	cost        float64
	reliability float64
	features    float64
}

// priorityWeights shifts the weight profile by requested priority.
var priorityWeights = map[model.SelectionPriority]scoreWeights{
	model.PrioritySpeed:       {performance: 0.50, cost: 0.15, reliability: 0.20, features: 0.15},
	model.PriorityQuality:     {performance: 0.50, cost: 0.10, reliability: 0.20, features: 0.20},
	model.PriorityCost:        {performance: 0.20, cost: 0.50, reliability: 0.15, features: 0.15},
	model.PriorityReliability: {performance: 0.20, cost: 0.15, reliability: 0.50, features: 0.15},
	model.PriorityBalanced:    {performance: 0.30, cost: 0.25, reliability: 0.25, features: 0.20},
}

// issuePenalties discounts a candidate's score multiplicatively per
// known-issue severity.
var issuePenalties = map[string]float64{
	"critical": 0.5,
	"major":    0.75,
	"minor":    0.9,
}

// NoSuitableModelError is raised when zero candidates qualify. It is a
// configuration/requirements problem, not a transient fault, and must
// not be retried through the resilience loop.
type NoSuitableModelError struct {
	Task         string
	Requirements *model.ModelRequirements
}

// Error implements the error interface.
func (e *NoSuitableModelError) Error() string {
	return fmt.Sprintf("no suitable model for task %q (budget=%s quality=%s provider=%s)",
		e.Task, e.Requirements.Budget, e.Requirements.Quality, e.Requirements.Provider)
}

// SelectorUseCase scores the static model registry against a caller's
// requirement profile and returns the best candidate. Results are
// cached in-process (LRU with TTL) and in Redis for cross-worker reuse.
type SelectorUseCase struct {
	registry []*model.ModelDescriptor
	repo     ResilienceRepo
	cache    data.CacheClient
	lru      *expirable.LRU[string, *model.ModelDescriptor]
	logger   *log.Helper
}

// NewSelectorUseCase creates the model selection scorer from the
// hand-curated registry configuration.
func NewSelectorUseCase(c *conf.Selection, repo ResilienceRepo, cache data.CacheClient, logger log.Logger) *SelectorUseCase {
	ttl := data.TTLSelection
	if c.CacheTTLSeconds > 0 {
		ttl = time.Duration(c.CacheTTLSeconds) * time.Second
	}

	registry := make([]*model.ModelDescriptor, 0, len(c.Models))
	for _, entry := range c.Models {
		registry = append(registry, descriptorFromEntry(entry))
	}

	return &SelectorUseCase{
		registry: registry,
		repo:     repo,
		cache:    cache,
		lru:      expirable.NewLRU[string, *model.ModelDescriptor](selectionLRUSize, nil, ttl),
		logger:   log.NewHelper(logger),
	}
}

// descriptorFromEntry converts one registry configuration row into the
// immutable descriptor value object.
func descriptorFromEntry(e *conf.ModelEntry) *model.ModelDescriptor {
	return &model.ModelDescriptor{
		Name:                 e.Name,
		Provider:             e.Provider,
		SupportedTasks:       e.SupportedTasks,
		Capabilities:         e.Capabilities,
		Features:             e.Features,
		InputCostPerMillion:  e.InputCostPerMillion,
		OutputCostPerMillion: e.OutputCostPerMillion,
		MaxTokens:            e.MaxTokens,
		ContextWindow:        e.ContextWindow,
		QualityRating:        e.QualityRating,
		SpeedRating:          e.SpeedRating,
		CostEfficiency:       e.CostEfficiency,
		AvailabilityPct:      e.AvailabilityPct,
		KnownIssues:          e.KnownIssues,
	}
}

// SelectOptimalModel returns the best qualifying model for a task and
// requirement profile. Ties break by registry declaration order.
func (uc *SelectorUseCase) SelectOptimalModel(ctx context.Context, task string, req *model.ModelRequirements) (*model.ModelDescriptor, error) {
	if req == nil {
		req = &model.ModelRequirements{}
	}

	key := uc.selectionKey(task, req)

	if cached, ok := uc.lru.Get(key); ok {
		return cached, nil
	}

	var cached model.ModelDescriptor
	if err := uc.cache.Get(ctx, key, &cached); err == nil {
		uc.lru.Add(key, &cached)
		return &cached, nil
	}

	best, bestScore := uc.scoreCandidates(ctx, task, req)
	if best == nil {
		return nil, &NoSuitableModelError{Task: task, Requirements: req}
	}

	uc.logger.Infow("model selected",
		"type", "selection",
		"task", task,
		"model", best.Name,
		"provider", best.Provider,
		"score", fmt.Sprintf("%.4f", bestScore))

	uc.lru.Add(key, best)
	if err := uc.cache.Set(ctx, key, best, data.TTLSelection); err != nil {
		uc.logger.Warnw("failed to cache model selection",
			"type", "selection",
			"error", err)
	}

	return best, nil
}

// scoreCandidates filters and scores the registry, returning the
// highest-scoring candidate. Strict greater-than comparison keeps
// declaration order as the deterministic tie-breaker.
func (uc *SelectorUseCase) scoreCandidates(ctx context.Context, task string, req *model.ModelRequirements) (*model.ModelDescriptor, float64) {
	var best *model.ModelDescriptor
	bestScore := -1.0

	for _, candidate := range uc.registry {
		if !uc.qualifies(candidate, task, req) {
			continue
		}

		score := uc.score(ctx, candidate, req)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	return best, bestScore
}

// qualifies applies the hard filters: task support, provider match,
// budget ceiling, quality floor, and availability floor.
func (uc *SelectorUseCase) qualifies(d *model.ModelDescriptor, task string, req *model.ModelRequirements) bool {
	if !d.SupportsTask(task) {
		return false
	}

	if req.Provider != "" && req.Provider != "any" && d.Provider != req.Provider {
		return false
	}

	budget := req.Budget
	if budget == "" {
		budget = model.BudgetUnlimited
	}
	if ceiling, ok := budgetCeilings[budget]; ok && d.AverageCostPerMillion() > ceiling {
		return false
	}

	if req.Quality != "" {
		if floor, ok := qualityFloors[req.Quality]; ok && d.QualityRating < floor {
			return false
		}
	}

	availabilityFloor := defaultAvailabilityFloor
	if req.MinAvailability > 0 {
		availabilityFloor = req.MinAvailability
	}
	return d.AvailabilityPct >= availabilityFloor
}

// score computes the weighted sum of the four sub-scores, then applies
// the known-issue penalty.
func (uc *SelectorUseCase) score(ctx context.Context, d *model.ModelDescriptor, req *model.ModelRequirements) float64 {
	priority := req.Priority
	if priority == "" {
		priority = model.PriorityBalanced
	}
	weights, ok := priorityWeights[priority]
	if !ok {
		weights = priorityWeights[model.PriorityBalanced]
	}

	score := weights.performance*uc.performanceScore(ctx, d, priority) +
		weights.cost*(d.CostEfficiency/5.0) +
		weights.reliability*(d.AvailabilityPct/100.0) +
		weights.features*featureScore(d, req.Features)

	for _, issue := range d.KnownIssues {
		if penalty, ok := issuePenalties[issue]; ok {
			score *= penalty
		}
	}

	return score
}

// performanceScore blends the static quality/speed ratings, weighted
// toward whichever the priority favors, and folds in the provider's
// observed success rate once enough samples exist.
func (uc *SelectorUseCase) performanceScore(ctx context.Context, d *model.ModelDescriptor, priority model.SelectionPriority) float64 {
	qualityWeight := 0.6
	if priority == model.PrioritySpeed {
		qualityWeight = 0.3
	}
	static := (d.QualityRating*qualityWeight + d.SpeedRating*(1-qualityWeight)) / 5.0

	metrics, err := uc.repo.GetProviderMetrics(ctx, d.Provider,
		[]model.OperationType{model.OperationReceipt, model.OperationDocument})
	if err != nil || metrics.Total < minEmpiricalSamples {
		return static
	}

	return static*0.7 + metrics.Availability()*0.3
}

// featureScore is the fraction of requested features the model
// supports; no requested features scores full marks.
func featureScore(d *model.ModelDescriptor, requested []string) float64 {
	if len(requested) == 0 {
		return 1.0
	}

	matched := 0
	for _, feature := range requested {
		if d.Features[feature] {
			matched++
		}
	}
	return float64(matched) / float64(len(requested))
}

// selectionKey builds the cache key from the task and a stable hash of
// the requirement profile.
func (uc *SelectorUseCase) selectionKey(task string, req *model.ModelRequirements) string {
	payload, _ := json.Marshal(req)
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return data.BuildCacheKey(data.CacheKeySelection, task, fmt.Sprintf("%x", h.Sum64()))
}
