// Package reward implements the activity reward engine.
// Two-stage pure computation, no store access: an execution outcome is
// derived from character stats and task data, then reward rolls gate
// each reward category against the outcome's probabilities.
package reward

import (
	"math"
	"math/rand"

	"github.com/gearfall-games/gearfall/internal/domain"
)

// Base experience constants per activity. The harvesting constant is
// load-bearing: base xp = floor(25 × (1 + 0.05×level) × multiplier).
const (
	HarvestingBaseXP = 25
	CraftingBaseXP   = 35
	CombatBaseXP     = 50
)

// Clamp ranges for derived probabilities.
const (
	MinSuccessRate = 0.70
	MaxSuccessRate = 0.95
	MinWinChance   = 0.50
	MaxWinChance   = 0.90
	MaxRareChance  = 0.30
)

// Outcome is the stage-one result: derived multipliers and gate
// probabilities, no randomness involved.
type Outcome struct {
	Multiplier  float64 // feeds the base-xp formula
	SuccessRate float64 // harvesting/crafting gate, [0.70, 0.95]
	WinChance   float64 // combat gate, [0.50, 0.90]
	RareChance  float64 // rare-drop gate, [0, 0.30]
}

// Engine rolls rewards. The roll func is injected so tests can force
// draws; nil uses math/rand. No determinism or seeding guarantee is
// provided to callers.
type Engine struct {
	roll func() float64
}

// NewEngine creates a reward engine with the given uniform [0,1) roll
// source. Pass nil for the default source.
func NewEngine(roll func() float64) *Engine {
	if roll == nil {
		roll = rand.Float64
	}
	return &Engine{roll: roll}
}

// Execute computes the outcome and reward rolls for a completed task.
// Pure over (task, character, rolls): dispatches once on the activity
// variant.
func (e *Engine) Execute(task domain.Task, ch *domain.Character) (Outcome, []domain.TaskReward) {
	switch task.Type {
	case domain.ActivityHarvesting:
		if task.Data.Harvesting == nil {
			return Outcome{}, nil
		}
		out := HarvestingOutcome(*task.Data.Harvesting, ch)
		return out, e.rollHarvesting(*task.Data.Harvesting, out, ch.Level)
	case domain.ActivityCrafting:
		if task.Data.Crafting == nil {
			return Outcome{}, nil
		}
		out := CraftingOutcome(*task.Data.Crafting, ch)
		return out, e.rollCrafting(*task.Data.Crafting, out, ch.Level)
	case domain.ActivityCombat:
		if task.Data.Combat == nil {
			return Outcome{}, nil
		}
		out := CombatOutcome(*task.Data.Combat, ch)
		return out, e.rollCombat(*task.Data.Combat, out, ch.Level)
	default:
		return Outcome{}, nil
	}
}

// ─── Stage 1: execution outcomes ────────────────────────────────────────────

// HarvestingOutcome derives multipliers from tool bonuses, the gathering
// skill for the resource category, and the location bonus.
func HarvestingOutcome(data domain.HarvestingData, ch *domain.Character) Outcome {
	toolBonus := 0.0
	for _, t := range data.Tools {
		toolBonus += t.Efficiency
	}
	skill := float64(ch.Stats.Harvesting.ForCategory(data.Category).Level)

	return Outcome{
		Multiplier:  1 + toolBonus + skill*0.02 + data.Location.BonusRate,
		SuccessRate: clamp(0.70+toolBonus*0.5+skill*0.005+data.Location.BonusRate, MinSuccessRate, MaxSuccessRate),
		RareChance:  clamp(skill*0.003+data.Location.BonusRate*0.5, 0, MaxRareChance),
	}
}

// CraftingOutcome derives multipliers from the station bonus and the
// engineering skill.
func CraftingOutcome(data domain.CraftingData, ch *domain.Character) Outcome {
	skill := float64(ch.Stats.Crafting.Engineering.Level)

	return Outcome{
		Multiplier:  1 + data.Station.Bonus + skill*0.02,
		SuccessRate: clamp(0.70+data.Station.Bonus*0.5+skill*0.005, MinSuccessRate, MaxSuccessRate),
		RareChance:  clamp(skill*0.002+data.Station.Bonus*0.5, 0, MaxRareChance),
	}
}

// CombatOutcome derives multipliers from equipment bonuses and the level
// advantage over the opponent.
func CombatOutcome(data domain.CombatData, ch *domain.Character) Outcome {
	var attack, defense float64
	for _, eq := range data.Equipment {
		attack += eq.Attack
		defense += eq.Defense
	}
	advantage := float64(ch.Level - data.OpponentLevel)

	mult := 1 + attack*0.02
	if advantage > 0 {
		mult += 0.10 * advantage
	}

	return Outcome{
		Multiplier: mult,
		WinChance:  clamp(0.50+0.05*advantage+attack*0.01+defense*0.005, MinWinChance, MaxWinChance),
		RareChance: clamp(0.05+0.02*advantage, 0, MaxRareChance),
	}
}

// ─── Stage 2: reward rolls ──────────────────────────────────────────────────
// Each gate is evaluated exactly once per reward category.

// BaseExperience computes floor(constant × (1 + 0.05×level) × multiplier).
func BaseExperience(constant int, level int, multiplier float64) int64 {
	return int64(math.Floor(float64(constant) * (1 + 0.05*float64(level)) * multiplier))
}

func (e *Engine) rollHarvesting(data domain.HarvestingData, out Outcome, level int) []domain.TaskReward {
	rewards := []domain.TaskReward{{
		Type:     domain.RewardExperience,
		Quantity: BaseExperience(HarvestingBaseXP, level, out.Multiplier),
	}}

	if e.roll() < out.SuccessRate {
		rewards = append(rewards, domain.TaskReward{
			Type:     domain.RewardResource,
			ItemID:   data.ResourceID,
			Quantity: 1 + int64(out.Multiplier),
		})
	}
	if e.roll() < out.RareChance {
		rewards = append(rewards, domain.TaskReward{
			Type:     domain.RewardItem,
			ItemID:   "rare-" + data.ResourceID,
			Quantity: 1,
			Rarity:   "rare",
		})
	}
	return rewards
}

func (e *Engine) rollCrafting(data domain.CraftingData, out Outcome, level int) []domain.TaskReward {
	rewards := []domain.TaskReward{{
		Type:     domain.RewardExperience,
		Quantity: BaseExperience(CraftingBaseXP, level, out.Multiplier),
	}}

	if e.roll() < out.SuccessRate {
		rewards = append(rewards, domain.TaskReward{
			Type:     domain.RewardItem,
			ItemID:   data.ItemID,
			Quantity: 1,
		})
	}
	if e.roll() < out.RareChance {
		rewards = append(rewards, domain.TaskReward{
			Type:     domain.RewardItem,
			ItemID:   data.ItemID,
			Quantity: 1,
			Rarity:   "masterwork",
		})
	}
	return rewards
}

func (e *Engine) rollCombat(data domain.CombatData, out Outcome, level int) []domain.TaskReward {
	rewards := []domain.TaskReward{{
		Type:     domain.RewardExperience,
		Quantity: BaseExperience(CombatBaseXP, level, out.Multiplier),
	}}

	if e.roll() < out.WinChance {
		loot := int64(math.Floor(10 * (1 + 0.05*float64(data.OpponentLevel))))
		rewards = append(rewards, domain.TaskReward{
			Type:     domain.RewardCurrency,
			Quantity: loot,
		})
	}
	if e.roll() < out.RareChance {
		rewards = append(rewards, domain.TaskReward{
			Type:     domain.RewardItem,
			ItemID:   "trophy-" + data.OpponentID,
			Quantity: 1,
			Rarity:   "rare",
		})
	}
	return rewards
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
