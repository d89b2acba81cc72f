package model

// BudgetTier caps the average per-million-token cost of a candidate model.
type BudgetTier string

const (
	BudgetEconomy   BudgetTier = "economy"
	BudgetStandard  BudgetTier = "standard"
	BudgetPremium   BudgetTier = "premium"
	BudgetUnlimited BudgetTier = "unlimited"
)

// QualityTier sets the quality rating floor of a candidate model.
type QualityTier string

const (
	QualityBasic    QualityTier = "basic"
	QualityStandard QualityTier = "standard"
	QualityHigh     QualityTier = "high"
	QualityPremium  QualityTier = "premium"
)

// SelectionPriority shifts the scoring weight profile.
type SelectionPriority string

const (
	PrioritySpeed       SelectionPriority = "speed"
	PriorityQuality     SelectionPriority = "quality"
	PriorityCost        SelectionPriority = "cost"
	PriorityReliability SelectionPriority = "reliability"
	PriorityBalanced    SelectionPriority = "balanced"
)

// ModelDescriptor is an immutable registry entry describing one model.
// The registry is hand-curated configuration, not runtime-discovered.
type ModelDescriptor struct {
	Name                 string          `json:"name"`
	Provider             string          `json:"provider"`
	SupportedTasks       []string        `json:"supported_tasks"`
	Capabilities         []string        `json:"capabilities"`
	Features             map[string]bool `json:"features"`
	InputCostPerMillion  float64         `json:"input_cost_per_million"`
	OutputCostPerMillion float64         `json:"output_cost_per_million"`
	MaxTokens            int             `json:"max_tokens"`
	ContextWindow        int             `json:"context_window"`
	// QualityRating and SpeedRating are on a 0-5 scale.
	QualityRating  float64 `json:"quality_rating"`
	SpeedRating    float64 `json:"speed_rating"`
	CostEfficiency float64 `json:"cost_efficiency"`
	// AvailabilityPct is the static availability rating (0-100).
	AvailabilityPct float64 `json:"availability_pct"`
	// KnownIssues lists issue severities (critical/major/minor).
	KnownIssues []string `json:"known_issues,omitempty"`
}

// AverageCostPerMillion is the blended input/output token cost used
// for budget tier filtering.
func (d *ModelDescriptor) AverageCostPerMillion() float64 {
	return (d.InputCostPerMillion + d.OutputCostPerMillion) / 2
}

// SupportsTask reports whether the descriptor lists the given task.
func (d *ModelDescriptor) SupportsTask(task string) bool {
	for _, t := range d.SupportedTasks {
		if t == task {
			return true
		}
	}
	return false
}

// ModelRequirements is the caller-supplied requirement profile for
// model selection.
type ModelRequirements struct {
	// Provider restricts candidates to one provider; "any" or empty
	// accepts all providers.
	Provider string            `json:"provider,omitempty"`
	Budget   BudgetTier        `json:"budget,omitempty"`
	Quality  QualityTier       `json:"quality,omitempty"`
	Priority SelectionPriority `json:"priority,omitempty"`
	// Features lists required feature keys (e.g. "vision", "json_mode").
	Features []string `json:"features,omitempty"`
	// MinAvailability overrides the default availability floor (0-100).
	MinAvailability float64 `json:"min_availability,omitempty"`
}
