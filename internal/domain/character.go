package domain

import "time"

// SkillLevel is one trainable skill.
type SkillLevel struct {
	Level      int   `json:"level"`
	Experience int64 `json:"experience"`
}

// HarvestingSkills covers the four gathering disciplines.
type HarvestingSkills struct {
	Mining            SkillLevel `json:"mining"`
	Foraging          SkillLevel `json:"foraging"`
	Salvaging         SkillLevel `json:"salvaging"`
	CrystalExtraction SkillLevel `json:"crystal_extraction"`
}

// ForCategory returns the skill that gathers a resource category.
func (h HarvestingSkills) ForCategory(c ResourceCategory) SkillLevel {
	switch c {
	case CategoryMetallurgical, CategoryMechanical:
		return h.Mining
	case CategoryBotanical, CategoryAlchemical:
		return h.Foraging
	case CategoryArchaeological:
		return h.Salvaging
	case CategoryElectrical, CategoryAeronautical:
		return h.CrystalExtraction
	default:
		return SkillLevel{}
	}
}

// CraftingSkills covers the fabrication disciplines.
type CraftingSkills struct {
	Clockmaking SkillLevel `json:"clockmaking"`
	Engineering SkillLevel `json:"engineering"`
	Alchemy     SkillLevel `json:"alchemy"`
	Steamcraft  SkillLevel `json:"steamcraft"`
}

// CombatSkills covers the fighting disciplines.
type CombatSkills struct {
	Melee   SkillLevel `json:"melee"`
	Ranged  SkillLevel `json:"ranged"`
	Defense SkillLevel `json:"defense"`
	Tactics SkillLevel `json:"tactics"`
}

// CharacterStats groups all skills.
type CharacterStats struct {
	Harvesting HarvestingSkills `json:"harvesting"`
	Crafting   CraftingSkills   `json:"crafting"`
	Combat     CombatSkills     `json:"combat"`
}

// Specialization tracks progress toward each class branch.
type Specialization struct {
	Harvesting int `json:"harvesting"`
	Crafting   int `json:"crafting"`
	Combat     int `json:"combat"`
}

// ActivitySnapshot records what a character was doing, for offline
// catch-up on reconnect.
type ActivitySnapshot struct {
	Type      ActivityType `json:"type"`
	StartedAt time.Time    `json:"started_at"`
}

// Character is the persistent player record the engine reads stats from
// and applies rewards to. Rewards are applied with relative (additive)
// updates only.
type Character struct {
	UserID         string            `json:"user_id"`
	Name           string            `json:"name,omitempty"`
	Level          int               `json:"level"`
	Experience     int64             `json:"experience"`
	Currency       int64             `json:"currency"`
	Stats          CharacterStats    `json:"stats"`
	Specialization Specialization    `json:"specialization"`
	Resources      map[string]int64  `json:"resources,omitempty"`
	Activity       *ActivitySnapshot `json:"activity,omitempty"`
	LastActiveAt   time.Time         `json:"last_active_at"`
}

// SkillForActivity selects the governing skill level for a task's
// activity, matching the reward engine's multiplier inputs.
func (c *Character) SkillForActivity(t Task) int {
	switch t.Type {
	case ActivityHarvesting:
		if t.Data.Harvesting != nil {
			return c.Stats.Harvesting.ForCategory(t.Data.Harvesting.Category).Level
		}
	case ActivityCrafting:
		return c.Stats.Crafting.Engineering.Level
	case ActivityCombat:
		return c.Stats.Combat.Melee.Level
	}
	return 0
}
