// Package scheduler implements the periodic queue driver.
// One RunCycle advances every running queue by elapsed wall time:
// progress notifications for tasks still underway, a single completion
// attempt for tasks past their duration, in-place retry on failure, and
// promotion of the next queued task. The scheduler holds no state
// between invocations — everything lives in the store.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gearfall-games/gearfall/internal/app/reward"
	"github.com/gearfall-games/gearfall/internal/app/validate"
	"github.com/gearfall-games/gearfall/internal/domain"
	"github.com/gearfall-games/gearfall/internal/infra/metrics"
	"github.com/gearfall-games/gearfall/internal/infra/store"
)

// Notifier delivers real-time payloads to every connection of a player.
// Delivery is best-effort; the scheduler never learns about transport
// failures.
type Notifier interface {
	SendToPlayer(playerID string, n domain.Notification)
}

// Config holds scheduler defaults applied to lazily created queues and
// tasks.
type Config struct {
	DefaultMaxRetries int
	MaxQueueSize      int
}

// DefaultConfig returns production scheduler defaults.
func DefaultConfig() Config {
	return Config{
		DefaultMaxRetries: 3,
		MaxQueueSize:      20,
	}
}

// Scheduler advances task queues. Per-player processing is serialized
// through a keyed mutex; distinct players interleave freely across
// overlapping trigger invocations.
type Scheduler struct {
	store    *store.Store
	engine   *reward.Engine
	notifier Notifier
	config   Config
	now      func() time.Time

	locks sync.Map // playerID → *sync.Mutex
}

// New creates a scheduler. The notifier is injected so tests can
// substitute delivery.
func New(st *store.Store, eng *reward.Engine, n Notifier, cfg Config) *Scheduler {
	return &Scheduler{
		store:    st,
		engine:   eng,
		notifier: n,
		config:   cfg,
		now:      time.Now,
	}
}

// SetClock overrides the scheduler's time source. Tests only.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// CycleReport summarizes one scheduler pass.
type CycleReport struct {
	Queues    int `json:"queues"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Errors    int `json:"errors"`
}

// RunCycle scans every running queue and advances it. A failure in one
// player's queue is logged and isolated — it never aborts the batch.
// The scan returns player ids only; each queue is re-loaded under that
// player's lock so an add or an overlapping cycle landing mid-scan is
// never overwritten by a stale snapshot.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	start := s.now()
	var report CycleReport

	players, err := s.store.RunningPlayers()
	if err != nil {
		log.Printf("[scheduler] scan running queues: %v", err)
		report.Errors++
		return report
	}

	for _, playerID := range players {
		if ctx.Err() != nil {
			break
		}
		report.Queues++
		metrics.QueuesProcessed.Inc()

		outcome, err := s.processQueue(playerID)
		if err != nil {
			log.Printf("[scheduler] queue %s: %v", playerID, err)
			metrics.QueueErrors.Inc()
			report.Errors++
			continue
		}
		switch outcome {
		case outcomeCompleted:
			report.Completed++
		case outcomeFailed, outcomeDropped:
			report.Failed++
		}
	}

	metrics.CycleDuration.Observe(s.now().Sub(start).Seconds())
	return report
}

type tickOutcome int

const (
	outcomeNone tickOutcome = iota
	outcomeProgress
	outcomeCompleted
	outcomeFailed
	outcomeDropped
)

// processQueue advances a single queue under that player's lock. The
// queue is loaded only after the lock is held, so every mutation starts
// from the freshly persisted record. At most one completion fires per
// tick, however many duration-multiples the elapsed time spans.
func (s *Scheduler) processQueue(playerID string) (tickOutcome, error) {
	unlock := s.lock(playerID)
	defer unlock()

	q, err := s.store.GetQueue(playerID)
	if err != nil {
		return outcomeNone, err
	}
	if q == nil || !q.Running || q.Paused {
		// Stopped or removed between the scan and this turn.
		return outcomeNone, nil
	}

	now := s.now()

	// Repair an orphaned running state before anything else: a running
	// queue must have a current task.
	if q.Current == nil {
		q.Promote(now)
		q.Touch(now)
		if err := s.store.PutQueue(q); err != nil {
			return outcomeNone, err
		}
		return outcomeNone, nil
	}

	cur := q.Current
	if !cur.Due(now) {
		// Still underway: progress notification only, no persistence.
		progress := cur.ProgressAt(now)
		remaining := cur.Duration - cur.Elapsed(now)
		if remaining < 0 {
			remaining = 0
		}
		s.notify(q.PlayerID, domain.NotifTaskProgress, map[string]any{
			"task_id":        cur.ID,
			"activity":       cur.Type,
			"progress":       progress,
			"time_remaining": remaining.Milliseconds(),
		})
		return outcomeProgress, nil
	}

	return s.attemptCompletion(q, now)
}

// attemptCompletion runs the validator and reward engine for the current
// task, applies rewards, and advances the queue.
func (s *Scheduler) attemptCompletion(q *domain.TaskQueue, now time.Time) (tickOutcome, error) {
	cur := q.Current

	ch, err := s.store.GetCharacter(q.PlayerID)
	if err != nil {
		return outcomeNone, err
	}
	if ch == nil {
		return s.failCurrent(q, now, "character not found", "missing_character")
	}

	res := validate.Task(*cur, ch)
	for _, w := range res.Warnings {
		log.Printf("[scheduler] queue %s task %s: %s", q.PlayerID, cur.ID, w)
	}
	if !res.OK {
		return s.failCurrent(q, now, res.Reason, "validation")
	}

	outcome, rewards := s.engine.Execute(*cur, ch)
	delta := deltaFromRewards(cur.Type, rewards)
	if err := s.store.ApplyRewardDelta(q.PlayerID, delta, now); err != nil {
		// Store failure is transient, not a validation failure: the task
		// stays current and the next tick attempts completion again.
		return outcomeNone, err
	}
	metrics.ExperienceAwarded.WithLabelValues("live").Add(float64(delta.Experience))

	cur.Progress = 1
	cur.Completed = true
	cur.Rewards = rewards
	completed := *cur

	q.TotalCompleted++
	q.TotalTimeSpent += completed.Duration
	promoted := q.Promote(now)
	q.Touch(now)
	if err := s.store.PutQueue(q); err != nil {
		return outcomeNone, err
	}

	metrics.TasksCompleted.WithLabelValues(string(completed.Type)).Inc()
	s.notify(q.PlayerID, domain.NotifTaskCompleted, map[string]any{
		"task_id":    completed.ID,
		"activity":   completed.Type,
		"rewards":    completed.Rewards,
		"multiplier": outcome.Multiplier,
		"version":    q.Version,
	})
	if promoted != nil {
		s.notifyStarted(q, promoted)
	}
	return outcomeCompleted, nil
}

// failCurrent advances retry bookkeeping for a failed completion
// attempt. Below the retry limit the task restarts in place at the same
// queue position; past it the task is dropped and the next one promoted.
// class labels the failure category on the metric.
func (s *Scheduler) failCurrent(q *domain.TaskQueue, now time.Time, reason, class string) (tickOutcome, error) {
	cur := q.Current
	cur.RetryCount++
	metrics.TasksFailed.WithLabelValues(string(cur.Type), class).Inc()

	if q.Config.RetryEnabled && cur.RetryCount <= cur.MaxRetries {
		cur.StartedAt = now
		cur.Progress = 0
		q.Touch(now)
		if err := s.store.PutQueue(q); err != nil {
			return outcomeNone, err
		}
		s.notify(q.PlayerID, domain.NotifTaskFailed, map[string]any{
			"task_id":     cur.ID,
			"activity":    cur.Type,
			"reason":      reason,
			"retry_count": cur.RetryCount,
			"will_retry":  true,
		})
		return outcomeFailed, nil
	}

	dropped := *cur
	promoted := q.Promote(now)
	q.Touch(now)
	if err := s.store.PutQueue(q); err != nil {
		return outcomeNone, err
	}

	metrics.TasksDropped.WithLabelValues(string(dropped.Type)).Inc()
	s.notify(q.PlayerID, domain.NotifTaskFailed, map[string]any{
		"task_id":     dropped.ID,
		"activity":    dropped.Type,
		"reason":      reason,
		"retry_count": dropped.RetryCount,
		"will_retry":  false,
	})
	if promoted != nil {
		s.notifyStarted(q, promoted)
	}
	return outcomeDropped, nil
}

// deltaFromRewards folds reward lines into one additive character
// mutation, including the specialization point for the activity branch.
func deltaFromRewards(activity domain.ActivityType, rewards []domain.TaskReward) store.RewardDelta {
	delta := store.RewardDelta{Touch: true}
	for _, r := range rewards {
		switch r.Type {
		case domain.RewardExperience:
			delta.Experience += r.Quantity
		case domain.RewardCurrency:
			delta.Currency += r.Quantity
		case domain.RewardResource, domain.RewardItem:
			if delta.Resources == nil {
				delta.Resources = make(map[string]int64)
			}
			delta.Resources[r.ItemID] += r.Quantity
		}
	}
	switch activity {
	case domain.ActivityHarvesting:
		delta.Specialization.Harvesting = 1
	case domain.ActivityCrafting:
		delta.Specialization.Crafting = 1
	case domain.ActivityCombat:
		delta.Specialization.Combat = 1
	}
	return delta
}

func (s *Scheduler) notifyStarted(q *domain.TaskQueue, t *domain.Task) {
	s.notify(q.PlayerID, domain.NotifTaskStarted, map[string]any{
		"task_id":    t.ID,
		"activity":   t.Type,
		"duration":   t.Duration.Milliseconds(),
		"started_at": t.StartedAt,
		"version":    q.Version,
	})
}

func (s *Scheduler) notify(playerID string, kind domain.NotificationKind, data map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendToPlayer(playerID, domain.Notification{
		Kind:      kind,
		PlayerID:  playerID,
		Data:      data,
		Timestamp: s.now(),
	})
}

// lock serializes processing for one player and returns the unlock func.
func (s *Scheduler) lock(playerID string) func() {
	v, _ := s.locks.LoadOrStore(playerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
