// Package offline computes catch-up rewards for elapsed disconnected
// time. It runs out-of-band (on reconnect), never from the scheduler,
// and uses a deliberately coarser formula than the live reward engine:
// one additive character update for the whole window instead of many
// per-task completions.
package offline

import (
	"fmt"
	"math"
	"time"

	"github.com/gearfall-games/gearfall/internal/domain"
	"github.com/gearfall-games/gearfall/internal/infra/metrics"
	"github.com/gearfall-games/gearfall/internal/infra/store"
)

// CapMinutes is the maximum offline window credited: 24 hours.
const CapMinutes = 1440

// Per-activity base experience rates, per minute. Independently tuned
// from the live engine's constants; see DESIGN.md for the divergence
// rationale.
const (
	HarvestingRate = 2.0
	CraftingRate   = 3.0
	CombatRate     = 4.0
)

// Result is one catch-up computation.
type Result struct {
	Progressed bool                `json:"progressed"`
	Minutes    int64               `json:"minutes"`
	Activity   domain.ActivityType `json:"activity,omitempty"`
	Experience int64               `json:"experience"`
	Currency   int64               `json:"currency"`
	Resources  map[string]int64    `json:"resources,omitempty"`
	Messages   []string            `json:"messages,omitempty"`
}

// Calculator applies offline catch-up to character records.
type Calculator struct {
	store *store.Store
	now   func() time.Time
}

// NewCalculator creates an offline catch-up calculator.
func NewCalculator(st *store.Store) *Calculator {
	return &Calculator{store: st, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (c *Calculator) SetClock(now func() time.Time) { c.now = now }

// Apply computes and persists catch-up rewards for a player. Less than
// one full elapsed minute returns a no-progress result with no mutation.
func (c *Calculator) Apply(playerID string) (*Result, error) {
	ch, err := c.store.GetCharacter(playerID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, domain.ErrCharacterNotFound
	}

	now := c.now()
	minutes := int64(math.Floor(now.Sub(ch.LastActiveAt).Minutes()))
	if minutes < 1 {
		return &Result{Progressed: false}, nil
	}
	if minutes > CapMinutes {
		minutes = CapMinutes
	}

	if ch.Activity == nil {
		// Nothing was running while away; just refresh presence.
		if err := c.store.TouchCharacter(playerID, now); err != nil {
			return nil, err
		}
		return &Result{Progressed: false, Minutes: minutes}, nil
	}

	res := compute(ch.Activity.Type, minutes, snapshotSkill(ch, ch.Activity.Type))

	delta := store.RewardDelta{
		Experience: res.Experience,
		Currency:   res.Currency,
		Resources:  res.Resources,
		Touch:      true,
	}
	// One specialization point per full offline hour, to the active branch.
	hours := int(minutes / 60)
	switch ch.Activity.Type {
	case domain.ActivityHarvesting:
		delta.Specialization.Harvesting = hours
	case domain.ActivityCrafting:
		delta.Specialization.Crafting = hours
	case domain.ActivityCombat:
		delta.Specialization.Combat = hours
	}

	if err := c.store.ApplyRewardDelta(playerID, delta, now); err != nil {
		return nil, err
	}

	metrics.OfflineMinutes.Observe(float64(minutes))
	metrics.ExperienceAwarded.WithLabelValues("offline").Add(float64(res.Experience))
	return res, nil
}

// compute derives the catch-up bundle for one activity over the window.
// experience = floor(minutes × baseRate × (1 + skillLevel×0.1)).
func compute(activity domain.ActivityType, minutes int64, skillLevel int) *Result {
	res := &Result{
		Progressed: true,
		Minutes:    minutes,
		Activity:   activity,
	}
	skillFactor := 1 + float64(skillLevel)*0.1

	switch activity {
	case domain.ActivityHarvesting:
		res.Experience = int64(math.Floor(float64(minutes) * HarvestingRate * skillFactor))
		res.Resources = map[string]int64{"salvaged-scrap": minutes / 2}
		res.Messages = append(res.Messages,
			fmt.Sprintf("You harvested for %d minutes while away, gathering %d scrap.", minutes, minutes/2))
	case domain.ActivityCrafting:
		res.Experience = int64(math.Floor(float64(minutes) * CraftingRate * skillFactor))
		res.Currency = minutes / 3
		res.Messages = append(res.Messages,
			fmt.Sprintf("Your workshop ran for %d minutes while away, earning %d cogs.", minutes, minutes/3))
	case domain.ActivityCombat:
		res.Experience = int64(math.Floor(float64(minutes) * CombatRate * skillFactor))
		res.Currency = minutes / 2
		res.Messages = append(res.Messages,
			fmt.Sprintf("You patrolled for %d minutes while away, collecting %d cogs in bounties.", minutes, minutes/2))
	}

	res.Messages = append(res.Messages,
		fmt.Sprintf("Offline progress: +%d experience.", res.Experience))
	return res
}

// snapshotSkill picks the governing skill level for an activity branch.
// The snapshot carries no task payload, so the best skill in the branch
// stands in.
func snapshotSkill(ch *domain.Character, activity domain.ActivityType) int {
	max4 := func(a, b, c, d domain.SkillLevel) int {
		best := a.Level
		for _, s := range []int{b.Level, c.Level, d.Level} {
			if s > best {
				best = s
			}
		}
		return best
	}
	switch activity {
	case domain.ActivityHarvesting:
		h := ch.Stats.Harvesting
		return max4(h.Mining, h.Foraging, h.Salvaging, h.CrystalExtraction)
	case domain.ActivityCrafting:
		cr := ch.Stats.Crafting
		return max4(cr.Clockmaking, cr.Engineering, cr.Alchemy, cr.Steamcraft)
	case domain.ActivityCombat:
		cb := ch.Stats.Combat
		return max4(cb.Melee, cb.Ranged, cb.Defense, cb.Tactics)
	default:
		return 0
	}
}
