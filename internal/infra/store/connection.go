package store

import (
	"database/sql"
	"time"

	"github.com/gearfall-games/gearfall/internal/domain"
)

// ─── Connection Repository ──────────────────────────────────────────────────
// Connection timestamps are stored at millisecond precision; staleness
// thresholds are short enough that whole seconds would be too coarse.

// PutConnection upserts a connection record.
func (s *Store) PutConnection(c *domain.Connection) error {
	_, err := s.db.Exec(
		`INSERT INTO connections (connection_id, player_id, connected_at, last_ping, last_heartbeat, queue_version, healthy)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(connection_id) DO UPDATE SET
			player_id=excluded.player_id,
			last_ping=excluded.last_ping,
			last_heartbeat=excluded.last_heartbeat,
			queue_version=excluded.queue_version,
			healthy=excluded.healthy`,
		c.ConnectionID, c.PlayerID, c.ConnectedAt.UnixMilli(),
		c.LastPing.UnixMilli(), c.LastHeartbeat.UnixMilli(),
		c.QueueVersion, c.Healthy,
	)
	return err
}

// GetConnection retrieves one connection. Returns (nil, nil) if absent.
func (s *Store) GetConnection(connectionID string) (*domain.Connection, error) {
	row := s.db.QueryRow(
		`SELECT connection_id, player_id, connected_at, last_ping, last_heartbeat, queue_version, healthy
		 FROM connections WHERE connection_id = ?`, connectionID,
	)
	c, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ConnectionsForPlayer returns every connection for a player, via the
// player index. This is the fan-out lookup.
func (s *Store) ConnectionsForPlayer(playerID string) ([]domain.Connection, error) {
	rows, err := s.db.Query(
		`SELECT connection_id, player_id, connected_at, last_ping, last_heartbeat, queue_version, healthy
		 FROM connections WHERE player_id = ? ORDER BY connected_at`, playerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConnections(rows)
}

// AllConnections returns every stored connection, for the staleness sweep.
func (s *Store) AllConnections() ([]domain.Connection, error) {
	rows, err := s.db.Query(
		`SELECT connection_id, player_id, connected_at, last_ping, last_heartbeat, queue_version, healthy
		 FROM connections ORDER BY connected_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConnections(rows)
}

// RecordHeartbeat updates a connection's heartbeat state and restores
// health.
func (s *Store) RecordHeartbeat(connectionID string, at time.Time, queueVersion int64) error {
	res, err := s.db.Exec(
		`UPDATE connections SET last_heartbeat = ?, last_ping = ?, queue_version = ?, healthy = 1
		 WHERE connection_id = ?`,
		at.UnixMilli(), at.UnixMilli(), queueVersion, connectionID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

// MarkConnectionUnhealthy flags a connection past the soft staleness
// threshold.
func (s *Store) MarkConnectionUnhealthy(connectionID string) error {
	_, err := s.db.Exec(
		`UPDATE connections SET healthy = 0 WHERE connection_id = ?`, connectionID,
	)
	return err
}

// DeleteConnection removes a connection record.
func (s *Store) DeleteConnection(connectionID string) error {
	_, err := s.db.Exec(`DELETE FROM connections WHERE connection_id = ?`, connectionID)
	return err
}

// ConnectionCount returns total and healthy connection counts.
func (s *Store) ConnectionCount() (total, healthy int, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(healthy), 0) FROM connections`,
	).Scan(&total, &healthy)
	return total, healthy, err
}

func scanConnection(row scanner) (*domain.Connection, error) {
	var c domain.Connection
	var connectedAt, lastPing, lastHeartbeat int64
	err := row.Scan(&c.ConnectionID, &c.PlayerID, &connectedAt, &lastPing,
		&lastHeartbeat, &c.QueueVersion, &c.Healthy)
	if err != nil {
		return nil, err
	}
	c.ConnectedAt = time.UnixMilli(connectedAt)
	c.LastPing = time.UnixMilli(lastPing)
	c.LastHeartbeat = time.UnixMilli(lastHeartbeat)
	return &c, nil
}

func collectConnections(rows *sql.Rows) ([]domain.Connection, error) {
	var conns []domain.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}
