package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gearfall-games/gearfall/internal/app/syncer"
	"github.com/gearfall-games/gearfall/internal/domain"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub owns the live websocket connections and implements the sync
// protocol's Channel: one duplex send per connection id.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*wsClient
	syncer *syncer.Service
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*wsClient)}
}

// SetSyncer wires the sync service in after construction. The hub and
// the service reference each other: the service sends through the hub,
// the hub dispatches inbound frames to the service.
func (h *Hub) SetSyncer(s *syncer.Service) { h.syncer = s }

// Send delivers a payload to one connection. Fire-and-forget from the
// protocol's point of view; an error only means this connection.
func (h *Hub) Send(connectionID string, payload []byte) error {
	h.mu.RLock()
	c := h.conns[connectionID]
	h.mu.RUnlock()
	if c == nil {
		return errors.New("connection not attached")
	}
	return c.write(payload)
}

// Len returns the number of attached connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) attach(connectionID string, c *wsClient) {
	h.mu.Lock()
	h.conns[connectionID] = c
	h.mu.Unlock()
}

func (h *Hub) detach(connectionID string) {
	h.mu.Lock()
	delete(h.conns, connectionID)
	h.mu.Unlock()
}

// wsClient guards one websocket connection with a write mutex and
// deadline so fan-out writers never interleave frames.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// clientFrame is one inbound message on the sync channel.
type clientFrame struct {
	Action string `json:"action"`

	// heartbeat
	Timestamp    time.Time `json:"timestamp,omitempty"`
	QueueVersion int64     `json:"queue_version,omitempty"`

	// sync_request
	LastSyncAt    time.Time `json:"last_sync_at,omitempty"`
	RequestedData []string  `json:"requested_data,omitempty"`

	// delta_update
	Delta *domain.DeltaUpdate `json:"delta,omitempty"`

	// conflict_resolution
	ConflictID  string `json:"conflict_id,omitempty"`
	ServerValue int64  `json:"server_value,omitempty"`
	ClientValue int64  `json:"client_value,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

// handleWebsocket upgrades the connection, registers it with the sync
// protocol, and pumps inbound frames until the client goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		writeError(w, http.StatusBadRequest, "player query parameter required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] websocket upgrade: %v", err)
		return
	}

	connectionID := uuid.NewString()
	client := &wsClient{conn: conn}
	s.hub.attach(connectionID, client)
	s.syncer.StoreConnection(connectionID, playerID)
	log.Printf("[api] connection %s attached for player %s", connectionID, playerID)

	defer func() {
		s.hub.detach(connectionID)
		s.syncer.DropConnection(connectionID)
		conn.Close()
		log.Printf("[api] connection %s detached", connectionID)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] connection %s read: %v", connectionID, err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Printf("[api] connection %s bad frame: %v", connectionID, err)
			continue
		}
		s.dispatchFrame(connectionID, playerID, frame)
	}
}

// dispatchFrame routes one inbound frame to the sync protocol. Every
// handler swallows its own failures, so dispatch never errors.
func (s *Server) dispatchFrame(connectionID, playerID string, frame clientFrame) {
	switch frame.Action {
	case "heartbeat":
		s.syncer.HandleHeartbeat(connectionID, domain.HeartbeatPayload{
			Timestamp:    frame.Timestamp,
			QueueVersion: frame.QueueVersion,
		})
	case "sync_request":
		s.syncer.HandleSyncRequest(connectionID, domain.SyncRequest{
			LastSyncAt:    frame.LastSyncAt,
			QueueVersion:  frame.QueueVersion,
			RequestedData: frame.RequestedData,
		})
	case "delta_update":
		if frame.Delta == nil {
			return
		}
		// Relay to the player's other connections; never echo the origin.
		s.syncer.SendDeltaUpdate(playerID, *frame.Delta, connectionID)
	case "conflict_resolution":
		s.syncer.HandleConflictResolution(connectionID, domain.ConflictResolution{
			ConflictID:  frame.ConflictID,
			ServerValue: frame.ServerValue,
			ClientValue: frame.ClientValue,
			Resolution:  frame.Resolution,
		})
	default:
		log.Printf("[api] connection %s unknown action %q", connectionID, frame.Action)
	}
}
