package scheduler

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/gearfall-games/gearfall/internal/domain"
)

// Queue lifecycle operations exposed to the HTTP surface. They share the
// scheduler's per-player locks so a tick never interleaves with an add
// or stop for the same player.

// Queue returns a player's queue, or nil if none exists yet.
func (s *Scheduler) Queue(playerID string) (*domain.TaskQueue, error) {
	return s.store.GetQueue(playerID)
}

// AddTask appends a task to a player's queue, lazily creating the queue
// (and a level-1 character) on first use. An idle queue starts the task
// immediately; otherwise it joins the pending list, bounded by
// MaxQueueSize.
func (s *Scheduler) AddTask(playerID string, t domain.Task) (*domain.TaskQueue, error) {
	if t.Duration <= 0 {
		return nil, domain.ErrZeroDuration
	}
	if !matchesVariant(t) {
		return nil, domain.ErrInvalidActivity
	}

	unlock := s.lock(playerID)
	defer unlock()

	now := s.now()

	q, err := s.store.GetQueue(playerID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		q = domain.NewTaskQueue(playerID)
		q.Config.MaxQueueSize = s.config.MaxQueueSize
	}

	if err := s.ensureCharacter(playerID, now); err != nil {
		return nil, err
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.MaxRetries == 0 {
		t.MaxRetries = s.config.DefaultMaxRetries
	}
	t.Progress = 0
	t.Completed = false
	t.RetryCount = 0

	started := false
	if q.Current == nil && !q.Paused {
		q.Start(t, now)
		started = true
	} else {
		if q.Full() {
			return nil, domain.ErrQueueFull
		}
		q.Queued = append(q.Queued, t)
	}

	q.Touch(now)
	if err := s.store.PutQueue(q); err != nil {
		return nil, err
	}

	if started {
		s.notifyStarted(q, q.Current)
	}
	s.notify(playerID, domain.NotifQueueUpdated, map[string]any{
		"version":  q.Version,
		"checksum": q.Checksum,
		"pending":  len(q.Queued),
		"running":  q.Running,
	})
	return q, nil
}

// StopTasks halts and removes a player's queue — the one path that ever
// deletes a queue record.
func (s *Scheduler) StopTasks(playerID string) error {
	unlock := s.lock(playerID)
	defer unlock()

	if err := s.store.DeleteQueue(playerID); err != nil {
		return err
	}
	log.Printf("[scheduler] queue %s stopped and removed", playerID)
	s.notify(playerID, domain.NotifQueueUpdated, map[string]any{
		"running": false,
		"stopped": true,
	})
	return nil
}

// ensureCharacter lazily creates a starter character record so reward
// application always has a row to add to.
func (s *Scheduler) ensureCharacter(playerID string, now time.Time) error {
	ch, err := s.store.GetCharacter(playerID)
	if err != nil {
		return err
	}
	if ch != nil {
		return nil
	}
	return s.store.PutCharacter(&domain.Character{
		UserID:       playerID,
		Level:        1,
		LastActiveAt: now,
	})
}

// matchesVariant reports whether the activity payload matches the task's
// type tag.
func matchesVariant(t domain.Task) bool {
	switch t.Type {
	case domain.ActivityHarvesting:
		return t.Data.Harvesting != nil
	case domain.ActivityCrafting:
		return t.Data.Crafting != nil
	case domain.ActivityCombat:
		return t.Data.Combat != nil
	default:
		return false
	}
}
