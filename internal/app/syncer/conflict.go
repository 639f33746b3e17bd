package syncer

import (
	"fmt"
	"log"

	"github.com/gearfall-games/gearfall/internal/domain"
	"github.com/gearfall-games/gearfall/internal/infra/metrics"
)

// Resolver reconciles a server/client version pair into the version both
// sides should converge on. Strategies are pluggable per name.
type Resolver func(server, client int64) int64

// RegisterResolver installs or replaces a resolution strategy.
func (s *Service) RegisterResolver(name string, r Resolver) {
	s.resolvers[name] = r
}

// HandleSyncRequest answers a client's sync request with a full or
// partial snapshot of the requested data categories. A missing queue is
// created lazily, per the data-model contract.
func (s *Service) HandleSyncRequest(connectionID string, req domain.SyncRequest) {
	conn, err := s.store.GetConnection(connectionID)
	if err != nil || conn == nil {
		log.Printf("[syncer] sync request from unknown connection %s: %v", connectionID, err)
		return
	}
	now := s.now()

	q, err := s.store.GetQueue(conn.PlayerID)
	if err != nil {
		log.Printf("[syncer] sync request queue %s: %v", conn.PlayerID, err)
		return
	}
	if q == nil {
		q = domain.NewTaskQueue(conn.PlayerID)
		q.Touch(now)
		if err := s.store.PutQueue(q); err != nil {
			log.Printf("[syncer] sync request create queue %s: %v", conn.PlayerID, err)
			return
		}
	}

	data := map[string]any{
		"server_time":   now,
		"queue_version": q.Version,
		"checksum":      q.Checksum,
		"in_sync":       req.QueueVersion == q.Version,
	}

	for _, category := range categoriesOrAll(req.RequestedData) {
		switch category {
		case "queue":
			data["queue"] = q
		case "character":
			ch, err := s.store.GetCharacter(conn.PlayerID)
			if err != nil {
				log.Printf("[syncer] sync request character %s: %v", conn.PlayerID, err)
				continue
			}
			data["character"] = ch
		case "conflicts":
			data["conflicts"] = s.DetectConnectionConflicts(conn.PlayerID)
		}
	}

	// Record what the client now knows, and when the queue last synced.
	if err := s.store.RecordHeartbeat(connectionID, now, q.Version); err != nil {
		log.Printf("[syncer] sync request heartbeat %s: %v", connectionID, err)
	}
	q.SyncedAt = now
	if err := s.store.PutQueue(q); err != nil {
		log.Printf("[syncer] sync request persist %s: %v", conn.PlayerID, err)
	}

	s.sendTo(connectionID, domain.Notification{
		Kind:      domain.NotifSyncResponse,
		PlayerID:  conn.PlayerID,
		Data:      data,
		Timestamp: now,
	})
}

// DetectConnectionConflicts pairwise-compares the reported queue version
// across all of a player's connections. The highest reported version
// stands in as the server value; every lagging connection yields one
// queue_state_changed conflict.
func (s *Service) DetectConnectionConflicts(playerID string) []domain.Conflict {
	conns, err := s.store.ConnectionsForPlayer(playerID)
	if err != nil {
		log.Printf("[syncer] conflict scan %s: %v", playerID, err)
		return nil
	}
	if len(conns) < 2 {
		return nil
	}

	highest := conns[0].QueueVersion
	for _, c := range conns[1:] {
		if c.QueueVersion > highest {
			highest = c.QueueVersion
		}
	}

	var conflicts []domain.Conflict
	for _, c := range conns {
		if c.QueueVersion == highest {
			continue
		}
		conflicts = append(conflicts, domain.Conflict{
			ID:          fmt.Sprintf("%s-%s-%d", playerID, c.ConnectionID, c.QueueVersion),
			Type:        domain.ConflictQueueStateChanged,
			PlayerID:    playerID,
			ServerValue: highest,
			ClientValue: c.QueueVersion,
		})
		metrics.ConflictsDetected.Inc()
	}
	return conflicts
}

// HandleConflictResolution applies the named strategy to a reported
// conflict and pushes the resolved version back to the connection.
func (s *Service) HandleConflictResolution(connectionID string, res domain.ConflictResolution) {
	resolver, ok := s.resolvers[res.Resolution]
	if !ok {
		log.Printf("[syncer] conflict %s: %v: %q", res.ConflictID, domain.ErrUnknownResolution, res.Resolution)
		return
	}

	conn, err := s.store.GetConnection(connectionID)
	if err != nil || conn == nil {
		log.Printf("[syncer] conflict resolution from unknown connection %s: %v", connectionID, err)
		return
	}

	resolved := resolver(res.ServerValue, res.ClientValue)
	now := s.now()
	if err := s.store.RecordHeartbeat(connectionID, now, resolved); err != nil {
		log.Printf("[syncer] conflict resolution persist %s: %v", connectionID, err)
		return
	}

	s.sendTo(connectionID, domain.Notification{
		Kind:     domain.NotifDeltaUpdate,
		PlayerID: conn.PlayerID,
		Data: map[string]any{
			"type":        "conflict_resolved",
			"conflict_id": res.ConflictID,
			"resolution":  res.Resolution,
			"version":     resolved,
		},
		Timestamp: now,
	})
}

func categoriesOrAll(requested []string) []string {
	if len(requested) == 0 {
		return []string{"queue", "character", "conflicts"}
	}
	return requested
}
