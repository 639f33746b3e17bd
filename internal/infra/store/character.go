package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gearfall-games/gearfall/internal/domain"
)

// ─── Character Repository ───────────────────────────────────────────────────

// characterBody is the JSON blob holding the parts of a Character that
// are not promoted to columns.
type characterBody struct {
	Stats          domain.CharacterStats `json:"stats"`
	Specialization domain.Specialization `json:"specialization"`
	Resources      map[string]int64      `json:"resources,omitempty"`
}

// PutCharacter upserts a character record.
func (s *Store) PutCharacter(c *domain.Character) error {
	body, err := json.Marshal(characterBody{
		Stats:          c.Stats,
		Specialization: c.Specialization,
		Resources:      c.Resources,
	})
	if err != nil {
		return fmt.Errorf("marshal character: %w", err)
	}

	var actType sql.NullString
	var actStarted sql.NullInt64
	if c.Activity != nil {
		actType = sql.NullString{String: string(c.Activity.Type), Valid: true}
		actStarted = nullableUnix(c.Activity.StartedAt)
	}

	_, err = s.db.Exec(
		`INSERT INTO characters (user_id, name, level, experience, currency, activity_type, activity_started_at, last_active_at, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			name=excluded.name,
			level=excluded.level,
			experience=excluded.experience,
			currency=excluded.currency,
			activity_type=excluded.activity_type,
			activity_started_at=excluded.activity_started_at,
			last_active_at=excluded.last_active_at,
			body=excluded.body`,
		c.UserID, c.Name, c.Level, c.Experience, c.Currency,
		actType, actStarted, c.LastActiveAt.Unix(), string(body),
	)
	return err
}

// GetCharacter retrieves a character by user id. Returns (nil, nil) if
// absent.
func (s *Store) GetCharacter(userID string) (*domain.Character, error) {
	row := s.db.QueryRow(
		`SELECT user_id, name, level, experience, currency, activity_type, activity_started_at, last_active_at, body
		 FROM characters WHERE user_id = ?`, userID,
	)
	return scanCharacter(row)
}

// RewardDelta is one additive mutation applied to a character record.
// Live-engine completion and offline catch-up both go through this, so
// concurrent application is order-independent.
type RewardDelta struct {
	Experience     int64
	Currency       int64
	Resources      map[string]int64
	Specialization domain.Specialization
	Touch          bool // also bump last_active_at to now
}

// ApplyRewardDelta applies a relative update to a character. The numeric
// columns use SQL-side addition; the body merge runs in the same
// transaction, so the whole delta is atomic under SQLite's single-writer
// lock.
func (s *Store) ApplyRewardDelta(userID string, d RewardDelta, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE characters SET experience = experience + ?, currency = currency + ? WHERE user_id = ?`,
		d.Experience, d.Currency, userID,
	)
	if err != nil {
		return fmt.Errorf("add rewards: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCharacterNotFound
	}

	if len(d.Resources) > 0 || d.Specialization != (domain.Specialization{}) {
		var raw string
		if err := tx.QueryRow(`SELECT body FROM characters WHERE user_id = ?`, userID).Scan(&raw); err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		var body characterBody
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return fmt.Errorf("unmarshal body: %w", err)
		}

		if body.Resources == nil {
			body.Resources = make(map[string]int64)
		}
		for id, qty := range d.Resources {
			body.Resources[id] += qty
		}
		body.Specialization.Harvesting += d.Specialization.Harvesting
		body.Specialization.Crafting += d.Specialization.Crafting
		body.Specialization.Combat += d.Specialization.Combat

		merged, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		if _, err := tx.Exec(`UPDATE characters SET body = ? WHERE user_id = ?`, string(merged), userID); err != nil {
			return fmt.Errorf("write body: %w", err)
		}
	}

	if d.Touch {
		if _, err := tx.Exec(`UPDATE characters SET last_active_at = ? WHERE user_id = ?`, now.Unix(), userID); err != nil {
			return fmt.Errorf("touch: %w", err)
		}
	}

	return tx.Commit()
}

// TouchCharacter bumps last_active_at.
func (s *Store) TouchCharacter(userID string, now time.Time) error {
	_, err := s.db.Exec(
		`UPDATE characters SET last_active_at = ? WHERE user_id = ?`,
		now.Unix(), userID,
	)
	return err
}

func scanCharacter(row scanner) (*domain.Character, error) {
	var c domain.Character
	var actType sql.NullString
	var actStarted, lastActive sql.NullInt64
	var raw string

	err := row.Scan(&c.UserID, &c.Name, &c.Level, &c.Experience, &c.Currency,
		&actType, &actStarted, &lastActive, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var body characterBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("unmarshal character body: %w", err)
	}
	c.Stats = body.Stats
	c.Specialization = body.Specialization
	c.Resources = body.Resources
	c.LastActiveAt = unixOrZero(lastActive)

	if actType.Valid {
		c.Activity = &domain.ActivitySnapshot{
			Type:      domain.ActivityType(actType.String),
			StartedAt: unixOrZero(actStarted),
		}
	}
	return &c, nil
}
