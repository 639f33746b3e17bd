package domain

import (
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"
)

// QueueConfig holds per-queue behavior toggles.
type QueueConfig struct {
	MaxQueueSize       int  `json:"max_queue_size"`
	RetryEnabled       bool `json:"retry_enabled"`
	ValidateOnComplete bool `json:"validate_on_complete"`
	SyncEnabled        bool `json:"sync_enabled"`
}

// DefaultQueueConfig returns the queue defaults applied on lazy creation.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxQueueSize:       20,
		RetryEnabled:       true,
		ValidateOnComplete: true,
		SyncEnabled:        true,
	}
}

// TaskQueue is the per-player ordered task list plus the currently
// executing task.
// Invariant: Current is nil iff Running is false.
type TaskQueue struct {
	PlayerID string `json:"player_id"`
	Current  *Task  `json:"current,omitempty"`
	Queued   []Task `json:"queued,omitempty"`
	Running  bool   `json:"running"`
	Paused   bool   `json:"paused"`

	TotalCompleted int64         `json:"total_completed"`
	TotalTimeSpent time.Duration `json:"total_time_spent"`

	Config   QueueConfig `json:"config"`
	Version  int64       `json:"version"`
	Checksum uint64      `json:"checksum"`

	UpdatedAt time.Time `json:"updated_at"`
	SyncedAt  time.Time `json:"synced_at,omitempty"`
}

// NewTaskQueue returns an empty, stopped queue for a player.
func NewTaskQueue(playerID string) *TaskQueue {
	return &TaskQueue{
		PlayerID: playerID,
		Config:   DefaultQueueConfig(),
	}
}

// Full reports whether the queue has reached MaxQueueSize pending tasks.
func (q *TaskQueue) Full() bool {
	return len(q.Queued) >= q.Config.MaxQueueSize
}

// Start makes the given task current and marks the queue running.
func (q *TaskQueue) Start(t Task, now time.Time) {
	t.StartedAt = now
	t.Progress = 0
	q.Current = &t
	q.Running = true
}

// Promote pops Queued[0] into Current (startTime=now), or clears Current
// and stops the queue if nothing is pending. Returns the promoted task.
func (q *TaskQueue) Promote(now time.Time) *Task {
	if len(q.Queued) == 0 {
		q.Current = nil
		q.Running = false
		return nil
	}
	next := q.Queued[0]
	q.Queued = q.Queued[1:]
	q.Start(next, now)
	return q.Current
}

// Touch bumps the version and recomputes the checksum. Every persisted
// mutation path must go through Touch before the write.
func (q *TaskQueue) Touch(now time.Time) {
	q.Version++
	q.UpdatedAt = now
	q.Checksum = q.computeChecksum()
}

// computeChecksum digests the queue contents that matter for client
// divergence detection: tasks, run state, and aggregates. Version and
// timestamps are excluded so identical contents hash identically.
func (q *TaskQueue) computeChecksum() uint64 {
	shadow := struct {
		PlayerID       string
		Current        *Task
		Queued         []Task
		Running        bool
		Paused         bool
		TotalCompleted int64
	}{q.PlayerID, q.Current, q.Queued, q.Running, q.Paused, q.TotalCompleted}

	b, err := json.Marshal(shadow)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}
