package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gearfall-games/gearfall/internal/api"
	"github.com/gearfall-games/gearfall/internal/app/offline"
	"github.com/gearfall-games/gearfall/internal/app/reward"
	"github.com/gearfall-games/gearfall/internal/app/scheduler"
	"github.com/gearfall-games/gearfall/internal/app/syncer"
	"github.com/gearfall-games/gearfall/internal/domain"
	"github.com/gearfall-games/gearfall/internal/infra/store"
)

// testServer wires the full service stack over a temporary store.
func testServer(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hub := api.NewHub()
	sync := syncer.New(st, hub, syncer.DefaultConfig())
	hub.SetSyncer(sync)
	sched := scheduler.New(st, reward.NewEngine(nil), sync, scheduler.DefaultConfig())
	off := offline.NewCalculator(st)

	return api.NewServer(st, sched, sync, off, hub).Handler(), st
}

func addTaskBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"type":        "HARVESTING",
		"duration_ms": 60000,
		"data": map[string]any{
			"harvesting": map[string]any{
				"resource_id": "copper-ore",
				"category":    "metallurgical",
				"tools":       []map[string]any{{"tool_id": "brass-pick", "efficiency": 0.1}},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestHealth(t *testing.T) {
	h, _ := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected ok status, got %v", body["status"])
	}
}

func TestAddTask_CreatesQueue(t *testing.T) {
	h, st := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/queue/player-1/tasks", addTaskBody(t)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var q domain.TaskQueue
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !q.Running || q.Current == nil {
		t.Errorf("first task should start immediately: %+v", q)
	}

	ch, err := st.GetCharacter("player-1")
	if err != nil {
		t.Fatalf("get character: %v", err)
	}
	if ch == nil {
		t.Error("character should be bootstrapped on first task")
	}
}

func TestAddTask_BadRequests(t *testing.T) {
	h, _ := testServer(t)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", "{not json", http.StatusBadRequest},
		{"zero duration", `{"type":"HARVESTING","duration_ms":0,"data":{"harvesting":{"resource_id":"x"}}}`, http.StatusBadRequest},
		{"mismatched payload", `{"type":"COMBAT","duration_ms":1000,"data":{"harvesting":{"resource_id":"x"}}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/queue/player-1/tasks", bytes.NewBufferString(tc.body))
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAddTask_FullQueueConflicts(t *testing.T) {
	h, st := testServer(t)

	// Shrink the queue bound directly in the stored record.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/queue/player-1/tasks", addTaskBody(t)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed task: %d", rec.Code)
	}
	q, _ := st.GetQueue("player-1")
	q.Config.MaxQueueSize = 1
	q.Touch(time.Now())
	if err := st.PutQueue(q); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Second fills the single pending slot, third overflows.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/queue/player-1/tasks", addTaskBody(t)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("fill pending slot: %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/queue/player-1/tasks", addTaskBody(t)))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 on full queue, got %d", rec.Code)
	}
}

func TestGetQueue(t *testing.T) {
	h, _ := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/queue/player-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any task, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/queue/player-1/tasks", addTaskBody(t)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/queue/player-1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 after seeding, got %d", rec.Code)
	}
}

func TestStopTasks(t *testing.T) {
	h, _ := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/queue/player-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing queue, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/queue/player-1/tasks", addTaskBody(t)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/queue/player-1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 on stop, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/queue/player-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("queue should be gone after stop, got %d", rec.Code)
	}
}

func TestCatchup(t *testing.T) {
	h, st := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/players/ghost/catchup", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown player, got %d", rec.Code)
	}

	err := st.PutCharacter(&domain.Character{
		UserID: "player-1", Level: 1,
		Activity:     &domain.ActivitySnapshot{Type: domain.ActivityHarvesting, StartedAt: time.Now().Add(-2 * time.Hour)},
		LastActiveAt: time.Now().Add(-2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("put character: %v", err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/players/player-1/catchup", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res offline.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Progressed || res.Experience <= 0 {
		t.Errorf("two hours away should progress: %+v", res)
	}
}

func TestAdminTick(t *testing.T) {
	h, st := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/queue/player-1/tasks", addTaskBody(t)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed: %d", rec.Code)
	}

	// Backdate the running task so the tick completes it.
	q, _ := st.GetQueue("player-1")
	q.Current.StartedAt = time.Now().Add(-2 * time.Minute)
	q.Touch(time.Now())
	if err := st.PutQueue(q); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/admin/tick", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var report scheduler.CycleReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Queues != 1 || report.Completed != 1 {
		t.Errorf("expected 1 queue / 1 completion, got %+v", report)
	}
}

func TestAdminCleanup(t *testing.T) {
	h, st := testServer(t)
	old := time.Now().Add(-time.Hour)
	err := st.PutConnection(&domain.Connection{
		ConnectionID: "c1", PlayerID: "player-1",
		ConnectedAt: old, LastPing: old, LastHeartbeat: old, Healthy: true,
	})
	if err != nil {
		t.Fatalf("put connection: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/admin/cleanup", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["dropped"] != 1 {
		t.Errorf("hour-old connection should be dropped: %+v", body)
	}
}

func TestWebsocket_RequiresPlayer(t *testing.T) {
	h, _ := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without player param, got %d", rec.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h, _ := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("OPTIONS", fmt.Sprintf("/api/queue/%s", "player-1"), nil))
	if rec.Code != http.StatusOK {
		t.Errorf("preflight should short-circuit with 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}
