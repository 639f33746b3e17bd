// Package syncer implements the real-time synchronization protocol that
// keeps multiple client connections per player consistent: connection
// health tracking, versioned delta exchange, divergence detection, and
// conflict resolution.
//
// Every operation is resilient by contract: transport and store failures
// are caught, logged, and swallowed — the protocol never propagates a
// failure to its caller. Clients converge eventually through heartbeats
// and sync responses, not through synchronous errors.
package syncer

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gearfall-games/gearfall/internal/domain"
	"github.com/gearfall-games/gearfall/internal/infra/metrics"
	"github.com/gearfall-games/gearfall/internal/infra/store"
)

// Channel delivers a payload to one connection. Fire-and-forget, no
// delivery guarantee.
type Channel interface {
	Send(connectionID string, payload []byte) error
}

// Config holds the staleness thresholds for the connection sweep.
type Config struct {
	StaleAfter time.Duration // mark unhealthy past this
	DropAfter  time.Duration // delete outright past this
}

// DefaultConfig returns production sync defaults.
func DefaultConfig() Config {
	return Config{
		StaleAfter: 90 * time.Second,
		DropAfter:  10 * time.Minute,
	}
}

// Service is the sync protocol implementation.
type Service struct {
	store     *store.Store
	ch        Channel
	config    Config
	now       func() time.Time
	resolvers map[string]Resolver
}

// New creates a sync service with the default resolution strategies
// registered.
func New(st *store.Store, ch Channel, cfg Config) *Service {
	s := &Service{
		store:  st,
		ch:     ch,
		config: cfg,
		now:    time.Now,
		resolvers: map[string]Resolver{
			"server_wins": func(server, _ int64) int64 { return server },
			"client_wins": func(_, client int64) int64 { return client },
			"merge": func(server, client int64) int64 {
				if client > server {
					return client
				}
				return server
			},
		},
	}
	return s
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ─── Connection lifecycle ───────────────────────────────────────────────────

// StoreConnection records a freshly connected client with queueVersion 0
// and healthy state.
func (s *Service) StoreConnection(connectionID, playerID string) {
	now := s.now()
	err := s.store.PutConnection(&domain.Connection{
		ConnectionID:  connectionID,
		PlayerID:      playerID,
		ConnectedAt:   now,
		LastPing:      now,
		LastHeartbeat: now,
		QueueVersion:  0,
		Healthy:       true,
	})
	if err != nil {
		log.Printf("[syncer] store connection %s: %v", connectionID, err)
		return
	}
	s.refreshConnectionGauge()
}

// DropConnection removes a connection record on disconnect.
func (s *Service) DropConnection(connectionID string) {
	if err := s.store.DeleteConnection(connectionID); err != nil {
		log.Printf("[syncer] drop connection %s: %v", connectionID, err)
		return
	}
	s.refreshConnectionGauge()
}

// HandleHeartbeat refreshes a connection's health and client-reported
// queue version, then answers with the server's view.
func (s *Service) HandleHeartbeat(connectionID string, hb domain.HeartbeatPayload) {
	now := s.now()
	if err := s.store.RecordHeartbeat(connectionID, now, hb.QueueVersion); err != nil {
		log.Printf("[syncer] heartbeat %s: %v", connectionID, err)
		return
	}

	conn, err := s.store.GetConnection(connectionID)
	if err != nil || conn == nil {
		log.Printf("[syncer] heartbeat lookup %s: %v", connectionID, err)
		return
	}
	serverVersion, err := s.store.QueueVersion(conn.PlayerID)
	if err != nil {
		log.Printf("[syncer] heartbeat version %s: %v", connectionID, err)
		serverVersion = 0
	}

	s.sendTo(connectionID, domain.Notification{
		Kind:     domain.NotifHeartbeatResponse,
		PlayerID: conn.PlayerID,
		Data: map[string]any{
			"server_time":    now,
			"queue_version":  serverVersion,
			"client_version": hb.QueueVersion,
			"in_sync":        serverVersion == hb.QueueVersion,
		},
		Timestamp: now,
	})
}

// CleanupStaleConnections sweeps every connection: unhealthy past the
// short threshold, deleted past the long one. Returns (marked, dropped)
// for observability.
func (s *Service) CleanupStaleConnections() (marked, dropped int) {
	conns, err := s.store.AllConnections()
	if err != nil {
		log.Printf("[syncer] stale sweep: %v", err)
		return 0, 0
	}

	now := s.now()
	for _, c := range conns {
		age := now.Sub(c.LastHeartbeat)
		switch {
		case age >= s.config.DropAfter:
			if err := s.store.DeleteConnection(c.ConnectionID); err != nil {
				log.Printf("[syncer] delete stale %s: %v", c.ConnectionID, err)
				continue
			}
			metrics.StaleConnectionsDropped.Inc()
			dropped++
		case age >= s.config.StaleAfter && c.Healthy:
			if err := s.store.MarkConnectionUnhealthy(c.ConnectionID); err != nil {
				log.Printf("[syncer] mark stale %s: %v", c.ConnectionID, err)
				continue
			}
			marked++
		}
	}

	s.refreshConnectionGauge()
	return marked, dropped
}

// ─── Fan-out ────────────────────────────────────────────────────────────────

// SendToPlayer fans a notification out to every connection for the
// player. A send failure on one connection never prevents delivery to
// the others.
func (s *Service) SendToPlayer(playerID string, n domain.Notification) {
	s.fanOut(playerID, n, "")
}

// SendDeltaUpdate relays a delta to every connection for the player
// except the originating one — broadcast-to-others, not echo.
func (s *Service) SendDeltaUpdate(playerID string, delta domain.DeltaUpdate, originConnectionID string) {
	n := domain.Notification{
		Kind:     domain.NotifDeltaUpdate,
		PlayerID: playerID,
		Data: map[string]any{
			"type":      delta.Type,
			"task_id":   delta.TaskID,
			"data":      delta.Data,
			"version":   delta.Version,
			"checksum":  delta.Checksum,
			"timestamp": delta.Timestamp,
		},
		Timestamp: s.now(),
	}
	s.fanOut(playerID, n, originConnectionID)
}

func (s *Service) fanOut(playerID string, n domain.Notification, exclude string) {
	conns, err := s.store.ConnectionsForPlayer(playerID)
	if err != nil {
		log.Printf("[syncer] fan-out lookup %s: %v", playerID, err)
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("[syncer] fan-out marshal %s: %v", playerID, err)
		return
	}

	for _, c := range conns {
		if c.ConnectionID == exclude {
			continue
		}
		if err := s.ch.Send(c.ConnectionID, payload); err != nil {
			// Isolate-and-continue: delivery is best-effort per connection.
			log.Printf("[syncer] send %s → %s: %v", string(n.Kind), c.ConnectionID, err)
			metrics.NotificationsFailed.Inc()
			continue
		}
		metrics.NotificationsSent.WithLabelValues(string(n.Kind)).Inc()
	}
}

func (s *Service) sendTo(connectionID string, n domain.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		log.Printf("[syncer] marshal %s: %v", string(n.Kind), err)
		return
	}
	if err := s.ch.Send(connectionID, payload); err != nil {
		log.Printf("[syncer] send %s → %s: %v", string(n.Kind), connectionID, err)
		metrics.NotificationsFailed.Inc()
		return
	}
	metrics.NotificationsSent.WithLabelValues(string(n.Kind)).Inc()
}

func (s *Service) refreshConnectionGauge() {
	total, _, err := s.store.ConnectionCount()
	if err != nil {
		return
	}
	metrics.ConnectionsActive.Set(float64(total))
}
