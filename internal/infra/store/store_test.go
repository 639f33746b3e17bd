package store_test

import (
	"testing"
	"time"

	"github.com/gearfall-games/gearfall/internal/domain"
	"github.com/gearfall-games/gearfall/internal/infra/store"
)

// testStore creates a temporary SQLite store for testing.
func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testCharacter(userID string) *domain.Character {
	return &domain.Character{
		UserID:       userID,
		Level:        5,
		Experience:   1000,
		Currency:     50,
		Resources:    map[string]int64{"copper-ore": 10},
		LastActiveAt: time.Now(),
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Queue Repository
// ═══════════════════════════════════════════════════════════════════════════

func TestQueue_RoundTrip(t *testing.T) {
	st := testStore(t)
	now := time.Now()

	q := domain.NewTaskQueue("player-1")
	q.Start(domain.Task{
		ID:       "t1",
		Type:     domain.ActivityCrafting,
		Duration: 30 * time.Second,
		Data:     domain.ActivityData{Crafting: &domain.CraftingData{RecipeID: "r1", ItemID: "gear"}},
	}, now)
	q.Touch(now)

	if err := st.PutQueue(q); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := st.GetQueue("player-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("queue missing")
	}
	if got.Current == nil || got.Current.ID != "t1" {
		t.Errorf("current task lost: %+v", got.Current)
	}
	if got.Version != q.Version || got.Checksum != q.Checksum {
		t.Errorf("version/checksum drifted: %d/%d vs %d/%d",
			got.Version, got.Checksum, q.Version, q.Checksum)
	}
}

func TestQueue_GetMissingReturnsNil(t *testing.T) {
	st := testStore(t)
	q, err := st.GetQueue("nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q != nil {
		t.Errorf("expected nil for missing queue, got %+v", q)
	}
}

func TestQueue_RunningScan(t *testing.T) {
	st := testStore(t)
	now := time.Now()

	running := domain.NewTaskQueue("runner")
	running.Start(domain.Task{ID: "t1", Type: domain.ActivityCombat, Duration: time.Minute,
		Data: domain.ActivityData{Combat: &domain.CombatData{OpponentID: "rust-golem"}}}, now)
	running.Touch(now)

	idle := domain.NewTaskQueue("idler")
	idle.Touch(now)

	if err := st.PutQueue(running); err != nil {
		t.Fatalf("put running: %v", err)
	}
	if err := st.PutQueue(idle); err != nil {
		t.Fatalf("put idle: %v", err)
	}

	players, err := st.RunningPlayers()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(players) != 1 || players[0] != "runner" {
		t.Errorf("expected only the running player, got %v", players)
	}
}

func TestQueue_DeleteMissing(t *testing.T) {
	st := testStore(t)
	if err := st.DeleteQueue("nobody"); err != domain.ErrQueueNotFound {
		t.Errorf("expected ErrQueueNotFound, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Character Repository
// ═══════════════════════════════════════════════════════════════════════════

func TestCharacter_RewardDeltaIsRelative(t *testing.T) {
	st := testStore(t)
	if err := st.PutCharacter(testCharacter("player-1")); err != nil {
		t.Fatalf("put: %v", err)
	}

	delta := store.RewardDelta{
		Experience:     120,
		Currency:       8,
		Resources:      map[string]int64{"copper-ore": 3, "rare-copper-ore": 1},
		Specialization: domain.Specialization{Harvesting: 1},
	}
	if err := st.ApplyRewardDelta("player-1", delta, time.Now()); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Apply twice: relative updates must stack, not overwrite.
	if err := st.ApplyRewardDelta("player-1", delta, time.Now()); err != nil {
		t.Fatalf("apply again: %v", err)
	}

	ch, err := st.GetCharacter("player-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ch.Experience != 1000+240 {
		t.Errorf("experience: expected 1240, got %d", ch.Experience)
	}
	if ch.Currency != 50+16 {
		t.Errorf("currency: expected 66, got %d", ch.Currency)
	}
	if ch.Resources["copper-ore"] != 16 {
		t.Errorf("copper-ore: expected 16, got %d", ch.Resources["copper-ore"])
	}
	if ch.Resources["rare-copper-ore"] != 2 {
		t.Errorf("rare-copper-ore: expected 2, got %d", ch.Resources["rare-copper-ore"])
	}
	if ch.Specialization.Harvesting != 2 {
		t.Errorf("specialization: expected 2, got %d", ch.Specialization.Harvesting)
	}
}

func TestCharacter_RewardDeltaMissingCharacter(t *testing.T) {
	st := testStore(t)
	err := st.ApplyRewardDelta("ghost", store.RewardDelta{Experience: 10}, time.Now())
	if err != domain.ErrCharacterNotFound {
		t.Errorf("expected ErrCharacterNotFound, got %v", err)
	}
}

func TestCharacter_ActivitySnapshotRoundTrip(t *testing.T) {
	st := testStore(t)
	started := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	ch := testCharacter("player-1")
	ch.Activity = &domain.ActivitySnapshot{Type: domain.ActivityHarvesting, StartedAt: started}
	if err := st.PutCharacter(ch); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := st.GetCharacter("player-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Activity == nil || got.Activity.Type != domain.ActivityHarvesting {
		t.Fatalf("activity snapshot lost: %+v", got.Activity)
	}
	if !got.Activity.StartedAt.Equal(started) {
		t.Errorf("snapshot time drifted: %v", got.Activity.StartedAt)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Connection Repository
// ═══════════════════════════════════════════════════════════════════════════

func TestConnection_PlayerIndex(t *testing.T) {
	st := testStore(t)
	now := time.Now()

	for _, id := range []string{"c1", "c2"} {
		err := st.PutConnection(&domain.Connection{
			ConnectionID: id, PlayerID: "player-1",
			ConnectedAt: now, LastPing: now, LastHeartbeat: now, Healthy: true,
		})
		if err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	err := st.PutConnection(&domain.Connection{
		ConnectionID: "c3", PlayerID: "player-2",
		ConnectedAt: now, LastPing: now, LastHeartbeat: now, Healthy: true,
	})
	if err != nil {
		t.Fatalf("put c3: %v", err)
	}

	conns, err := st.ConnectionsForPlayer("player-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(conns) != 2 {
		t.Errorf("expected 2 connections for player-1, got %d", len(conns))
	}
}

func TestConnection_Heartbeat(t *testing.T) {
	st := testStore(t)
	base := time.Now().Add(-time.Hour)

	err := st.PutConnection(&domain.Connection{
		ConnectionID: "c1", PlayerID: "player-1",
		ConnectedAt: base, LastPing: base, LastHeartbeat: base, Healthy: false,
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	at := time.Now()
	if err := st.RecordHeartbeat("c1", at, 7); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	conn, err := st.GetConnection("c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if conn.QueueVersion != 7 {
		t.Errorf("queue version: expected 7, got %d", conn.QueueVersion)
	}
	if !conn.Healthy {
		t.Error("heartbeat should restore health")
	}
	if conn.LastHeartbeat.Before(at.Add(-time.Second)) {
		t.Errorf("heartbeat time not updated: %v", conn.LastHeartbeat)
	}
}

func TestConnection_HeartbeatUnknown(t *testing.T) {
	st := testStore(t)
	if err := st.RecordHeartbeat("ghost", time.Now(), 1); err != domain.ErrConnectionNotFound {
		t.Errorf("expected ErrConnectionNotFound, got %v", err)
	}
}
