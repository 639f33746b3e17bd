// Package domain holds the core game types.
// A Task is one unit of timed player activity that flows through the queue:
// add → start → (scheduler ticks) → complete/fail → reward.
package domain

import "time"

// ActivityType categorizes the kind of player activity.
type ActivityType string

const (
	ActivityHarvesting ActivityType = "HARVESTING"
	ActivityCrafting   ActivityType = "CRAFTING"
	ActivityCombat     ActivityType = "COMBAT"
)

// ResourceCategory groups harvestable resources by the skill that gathers them.
type ResourceCategory string

const (
	CategoryMetallurgical  ResourceCategory = "metallurgical"
	CategoryMechanical     ResourceCategory = "mechanical"
	CategoryBotanical      ResourceCategory = "botanical"
	CategoryAlchemical     ResourceCategory = "alchemical"
	CategoryArchaeological ResourceCategory = "archaeological"
	CategoryElectrical     ResourceCategory = "electrical"
	CategoryAeronautical   ResourceCategory = "aeronautical"
)

// Requirement is a precondition flag checked during validation.
type Requirement struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Met         bool   `json:"met"`
}

// ResourceRequirement tracks whether a consumable input is available.
type ResourceRequirement struct {
	ResourceID string `json:"resource_id"`
	Required   int    `json:"required"`
	Available  int    `json:"available"`
	Sufficient bool   `json:"sufficient"`
}

// Tool is harvesting equipment carried into a task.
type Tool struct {
	ToolID     string  `json:"tool_id"`
	Efficiency float64 `json:"efficiency"` // additive bonus, 0.10 = +10%
}

// Location describes where a harvesting task runs.
type Location struct {
	LocationID   string        `json:"location_id"`
	BonusRate    float64       `json:"bonus_rate"`
	Requirements []Requirement `json:"requirements,omitempty"`
}

// HarvestingData is the Harvesting variant payload.
type HarvestingData struct {
	ResourceID string           `json:"resource_id"`
	Category   ResourceCategory `json:"category"`
	Tools      []Tool           `json:"tools,omitempty"`
	Location   Location         `json:"location"`
}

// Material tracks a crafting input and its availability.
type Material struct {
	MaterialID string `json:"material_id"`
	Required   int    `json:"required"`
	Available  int    `json:"available"`
	Sufficient bool   `json:"sufficient"`
}

// Station describes the crafting station a recipe runs on.
type Station struct {
	StationID    string        `json:"station_id"`
	Bonus        float64       `json:"bonus"` // additive quality bonus
	Requirements []Requirement `json:"requirements,omitempty"`
}

// CraftingData is the Crafting variant payload.
type CraftingData struct {
	RecipeID  string     `json:"recipe_id"`
	ItemID    string     `json:"item_id"`
	Materials []Material `json:"materials,omitempty"`
	Station   Station    `json:"station"`
}

// Equipment is a combat item with durability.
type Equipment struct {
	ItemID     string  `json:"item_id"`
	Attack     float64 `json:"attack"`
	Defense    float64 `json:"defense"`
	Durability int     `json:"durability"`
}

// CombatData is the Combat variant payload.
type CombatData struct {
	OpponentID    string      `json:"opponent_id"`
	OpponentLevel int         `json:"opponent_level"`
	Equipment     []Equipment `json:"equipment,omitempty"`
	LootTableID   string      `json:"loot_table_id,omitempty"`
}

// ActivityData is the closed tagged variant carried by a Task.
// Exactly one field is non-nil, matching Task.Type.
type ActivityData struct {
	Harvesting *HarvestingData `json:"harvesting,omitempty"`
	Crafting   *CraftingData   `json:"crafting,omitempty"`
	Combat     *CombatData     `json:"combat,omitempty"`
}

// RewardType tags a TaskReward.
type RewardType string

const (
	RewardExperience RewardType = "experience"
	RewardCurrency   RewardType = "currency"
	RewardResource   RewardType = "resource"
	RewardItem       RewardType = "item"
)

// TaskReward is one reward line. Immutable once produced; applied
// additively to the Character record.
type TaskReward struct {
	Type     RewardType `json:"type"`
	ItemID   string     `json:"item_id,omitempty"`
	Quantity int64      `json:"quantity"`
	Rarity   string     `json:"rarity,omitempty"`
}

// Task is one unit of timed activity.
// Invariant: Completed == true implies Progress == 1.
type Task struct {
	ID           string                `json:"id"`
	Type         ActivityType          `json:"type"`
	Duration     time.Duration         `json:"duration"`
	StartedAt    time.Time             `json:"started_at"`
	Data         ActivityData          `json:"data"`
	Progress     float64               `json:"progress"` // [0, 1]
	Completed    bool                  `json:"completed"`
	Rewards      []TaskReward          `json:"rewards,omitempty"`
	RetryCount   int                   `json:"retry_count"`
	MaxRetries   int                   `json:"max_retries"`
	Prereqs      []Requirement         `json:"prereqs,omitempty"`
	ResourceReqs []ResourceRequirement `json:"resource_reqs,omitempty"`
}

// Elapsed returns how long the task has been running as of now.
func (t *Task) Elapsed(now time.Time) time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(t.StartedAt)
}

// ProgressAt returns completion progress in [0, 1] as of now.
func (t *Task) ProgressAt(now time.Time) float64 {
	if t.Duration <= 0 {
		return 1
	}
	p := float64(t.Elapsed(now)) / float64(t.Duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Due reports whether the task has run for at least its full duration.
func (t *Task) Due(now time.Time) bool {
	return t.Elapsed(now) >= t.Duration
}
