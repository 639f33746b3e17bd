package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gearfall-games/gearfall/internal/domain"
)

// ─── Task Queue Repository ──────────────────────────────────────────────────

// PutQueue upserts the full queue document. The running/version/checksum
// columns are mirrored from the body for indexed scans.
func (s *Store) PutQueue(q *domain.TaskQueue) error {
	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal queue: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO task_queues (player_id, running, version, checksum, body, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
			running=excluded.running,
			version=excluded.version,
			checksum=excluded.checksum,
			body=excluded.body,
			updated_at=excluded.updated_at`,
		q.PlayerID, q.Running, q.Version, int64(q.Checksum), string(body), q.UpdatedAt.Unix(),
	)
	return err
}

// GetQueue retrieves a player's queue. Returns (nil, nil) if absent.
func (s *Store) GetQueue(playerID string) (*domain.TaskQueue, error) {
	var body string
	err := s.db.QueryRow(
		`SELECT body FROM task_queues WHERE player_id = ?`, playerID,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return unmarshalQueue(body)
}

// RunningPlayers returns the player id of every queue with running=true,
// for one scheduler pass. Ids only, never queue snapshots: the scheduler
// re-loads each queue under the player lock before mutating it.
func (s *Store) RunningPlayers() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT player_id FROM task_queues WHERE running = 1 ORDER BY player_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		players = append(players, id)
	}
	return players, rows.Err()
}

// QueueVersion returns the persisted version for a player's queue without
// decoding the body. Returns 0 if the queue does not exist.
func (s *Store) QueueVersion(playerID string) (int64, error) {
	var v int64
	err := s.db.QueryRow(
		`SELECT version FROM task_queues WHERE player_id = ?`, playerID,
	).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

// DeleteQueue removes a player's queue. Only the explicit stop operation
// uses this.
func (s *Store) DeleteQueue(playerID string) error {
	result, err := s.db.Exec(`DELETE FROM task_queues WHERE player_id = ?`, playerID)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrQueueNotFound
	}
	return nil
}

// QueueCount returns the number of stored queues and how many are running.
func (s *Store) QueueCount() (total, running int, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(running), 0) FROM task_queues`,
	).Scan(&total, &running)
	return total, running, err
}

func unmarshalQueue(body string) (*domain.TaskQueue, error) {
	var q domain.TaskQueue
	if err := json.Unmarshal([]byte(body), &q); err != nil {
		return nil, fmt.Errorf("unmarshal queue: %w", err)
	}
	return &q, nil
}
