// Package validate checks a task's preconditions against current
// character state. Validation never returns an error — a task is either
// executable or it is not.
package validate

import (
	"fmt"

	"github.com/gearfall-games/gearfall/internal/domain"
)

// Result reports whether a task may execute. Warnings are informational
// only and never block execution.
type Result struct {
	OK       bool
	Reason   string
	Warnings []string
}

// Task validates one task against the character about to execute it.
// Dispatches once on the activity variant.
func Task(task domain.Task, ch *domain.Character) Result {
	for _, p := range task.Prereqs {
		if !p.Met {
			return fail("prerequisite not met: %s", p.Type)
		}
	}

	switch task.Type {
	case domain.ActivityHarvesting:
		return harvesting(task.Data.Harvesting)
	case domain.ActivityCrafting:
		return crafting(task.Data.Crafting)
	case domain.ActivityCombat:
		return combat(task.Data.Combat, ch)
	default:
		return fail("unknown activity type: %s", task.Type)
	}
}

// harvesting requires at least one tool and every location requirement
// flagged met.
func harvesting(data *domain.HarvestingData) Result {
	if data == nil {
		return fail("missing harvesting payload")
	}
	if len(data.Tools) == 0 {
		return fail("no harvesting tool equipped")
	}
	for _, req := range data.Location.Requirements {
		if !req.Met {
			return fail("location requirement not met: %s", req.Type)
		}
	}
	return Result{OK: true}
}

// crafting requires every station requirement flagged met. Material
// sufficiency is checked informationally only — insufficient materials
// produce a warning, not a failure.
func crafting(data *domain.CraftingData) Result {
	if data == nil {
		return fail("missing crafting payload")
	}
	for _, req := range data.Station.Requirements {
		if !req.Met {
			return fail("station requirement not met: %s", req.Type)
		}
	}

	res := Result{OK: true}
	for _, m := range data.Materials {
		if !m.Sufficient || m.Available < m.Required {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("material %s short: have %d, need %d", m.MaterialID, m.Available, m.Required))
		}
	}
	return res
}

// combat requires the character level within 5 of the opponent's and no
// equipped item at zero durability.
func combat(data *domain.CombatData, ch *domain.Character) Result {
	if data == nil {
		return fail("missing combat payload")
	}
	diff := ch.Level - data.OpponentLevel
	if diff < -5 || diff > 5 {
		return fail("opponent level %d out of range for level %d", data.OpponentLevel, ch.Level)
	}
	for _, eq := range data.Equipment {
		if eq.Durability <= 0 {
			return fail("equipment broken: %s", eq.ItemID)
		}
	}
	return Result{OK: true}
}

func fail(format string, args ...any) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}
