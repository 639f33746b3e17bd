package validate_test

import (
	"strings"
	"testing"

	"github.com/gearfall-games/gearfall/internal/app/validate"
	"github.com/gearfall-games/gearfall/internal/domain"
)

func TestHarvesting_RequiresTool(t *testing.T) {
	task := domain.Task{
		Type: domain.ActivityHarvesting,
		Data: domain.ActivityData{Harvesting: &domain.HarvestingData{
			ResourceID: "copper-ore",
			Category:   domain.CategoryMetallurgical,
		}},
	}

	res := validate.Task(task, &domain.Character{Level: 1})
	if res.OK {
		t.Fatal("toolless harvesting should not validate")
	}
	if !strings.Contains(res.Reason, "tool") {
		t.Errorf("reason should name the missing tool: %q", res.Reason)
	}

	task.Data.Harvesting.Tools = []domain.Tool{{ToolID: "brass-pick"}}
	if res := validate.Task(task, &domain.Character{Level: 1}); !res.OK {
		t.Errorf("tooled harvesting should validate: %q", res.Reason)
	}
}

func TestHarvesting_LocationRequirement(t *testing.T) {
	task := domain.Task{
		Type: domain.ActivityHarvesting,
		Data: domain.ActivityData{Harvesting: &domain.HarvestingData{
			Tools: []domain.Tool{{ToolID: "brass-pick"}},
			Location: domain.Location{
				LocationID:   "aether-shaft",
				Requirements: []domain.Requirement{{Type: "depth_permit", Met: false}},
			},
		}},
	}

	if res := validate.Task(task, &domain.Character{Level: 1}); res.OK {
		t.Error("unmet location requirement should block the task")
	}
}

func TestCrafting_MaterialShortageIsWarningOnly(t *testing.T) {
	task := domain.Task{
		Type: domain.ActivityCrafting,
		Data: domain.ActivityData{Crafting: &domain.CraftingData{
			RecipeID: "pocket-chronometer",
			ItemID:   "chronometer",
			Materials: []domain.Material{
				{MaterialID: "brass-gear", Required: 4, Available: 1, Sufficient: false},
			},
		}},
	}

	res := validate.Task(task, &domain.Character{Level: 1})
	if !res.OK {
		t.Fatalf("material shortage must not block execution: %q", res.Reason)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "brass-gear") {
		t.Errorf("expected one shortage warning, got %v", res.Warnings)
	}
}

func TestCrafting_StationRequirementBlocks(t *testing.T) {
	task := domain.Task{
		Type: domain.ActivityCrafting,
		Data: domain.ActivityData{Crafting: &domain.CraftingData{
			Station: domain.Station{
				StationID:    "arc-forge",
				Requirements: []domain.Requirement{{Type: "forge_license", Met: false}},
			},
		}},
	}

	if res := validate.Task(task, &domain.Character{Level: 1}); res.OK {
		t.Error("unmet station requirement should block the task")
	}
}

func TestCombat_LevelRange(t *testing.T) {
	mk := func(oppLevel int) domain.Task {
		return domain.Task{
			Type: domain.ActivityCombat,
			Data: domain.ActivityData{Combat: &domain.CombatData{
				OpponentID:    "rust-golem",
				OpponentLevel: oppLevel,
			}},
		}
	}
	ch := &domain.Character{Level: 10}

	cases := []struct {
		oppLevel int
		ok       bool
	}{
		{5, true},   // boundary: 5 below
		{15, true},  // boundary: 5 above
		{4, false},  // too weak
		{16, false}, // too strong
	}
	for _, tc := range cases {
		res := validate.Task(mk(tc.oppLevel), ch)
		if res.OK != tc.ok {
			t.Errorf("opponent level %d: expected ok=%v, got %v (%q)",
				tc.oppLevel, tc.ok, res.OK, res.Reason)
		}
	}
}

func TestCombat_BrokenEquipment(t *testing.T) {
	task := domain.Task{
		Type: domain.ActivityCombat,
		Data: domain.ActivityData{Combat: &domain.CombatData{
			OpponentLevel: 10,
			Equipment: []domain.Equipment{
				{ItemID: "steam-blade", Durability: 50},
				{ItemID: "cracked-shield", Durability: 0},
			},
		}},
	}

	res := validate.Task(task, &domain.Character{Level: 10})
	if res.OK {
		t.Fatal("zero-durability equipment should block combat")
	}
	if !strings.Contains(res.Reason, "cracked-shield") {
		t.Errorf("reason should name the broken item: %q", res.Reason)
	}
}

func TestTask_PrereqBlocks(t *testing.T) {
	task := domain.Task{
		Type:    domain.ActivityHarvesting,
		Prereqs: []domain.Requirement{{Type: "guild_membership", Met: false}},
		Data: domain.ActivityData{Harvesting: &domain.HarvestingData{
			Tools: []domain.Tool{{ToolID: "brass-pick"}},
		}},
	}

	if res := validate.Task(task, &domain.Character{Level: 1}); res.OK {
		t.Error("unmet prerequisite should block regardless of activity checks")
	}
}

func TestTask_MissingPayload(t *testing.T) {
	task := domain.Task{Type: domain.ActivityCrafting}
	if res := validate.Task(task, &domain.Character{Level: 1}); res.OK {
		t.Error("task without a payload should not validate")
	}
}
