package domain

import "time"

// NotificationKind tags a real-time payload sent to connected clients.
type NotificationKind string

const (
	NotifTaskStarted       NotificationKind = "task_started"
	NotifTaskProgress      NotificationKind = "task_progress"
	NotifTaskCompleted     NotificationKind = "task_completed"
	NotifTaskFailed        NotificationKind = "task_failed"
	NotifQueueUpdated      NotificationKind = "queue_updated"
	NotifSyncResponse      NotificationKind = "sync_response"
	NotifDeltaUpdate       NotificationKind = "delta_update"
	NotifHeartbeatResponse NotificationKind = "heartbeat_response"
)

// Notification is one real-time payload. Delivery is fire-and-forget.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	PlayerID  string           `json:"player_id"`
	Data      map[string]any   `json:"data,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Connection tracks one client connection's sync health.
// Created on connect, refreshed on heartbeat, deleted on disconnect or
// extended staleness.
type Connection struct {
	ConnectionID  string    `json:"connection_id"`
	PlayerID      string    `json:"player_id"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastPing      time.Time `json:"last_ping"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	QueueVersion  int64     `json:"queue_version"`
	Healthy       bool      `json:"healthy"`
}

// DeltaUpdate is a versioned, checksummed incremental state change
// exchanged over the real-time channel. Transient — never persisted as a
// first-class record.
type DeltaUpdate struct {
	Type      string         `json:"type"`
	PlayerID  string         `json:"player_id"`
	TaskID    string         `json:"task_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Version   int64          `json:"version"`
	Checksum  uint64         `json:"checksum"`
}

// ConflictType tags a detected divergence.
type ConflictType string

const (
	ConflictQueueStateChanged ConflictType = "queue_state_changed"
)

// Conflict is a detected divergence between two connections' view of the
// queue. Derived on demand, never stored.
type Conflict struct {
	ID          string       `json:"id"`
	Type        ConflictType `json:"type"`
	PlayerID    string       `json:"player_id"`
	ServerValue int64        `json:"server_value"`
	ClientValue int64        `json:"client_value"`
	Resolution  string       `json:"resolution,omitempty"`
}

// HeartbeatPayload is the client-reported state carried on a heartbeat.
type HeartbeatPayload struct {
	Timestamp    time.Time `json:"timestamp"`
	QueueVersion int64     `json:"queue_version"`
}

// SyncRequest asks for a full or partial snapshot of the requested
// data categories.
type SyncRequest struct {
	LastSyncAt    time.Time `json:"last_sync_at"`
	QueueVersion  int64     `json:"queue_version"`
	RequestedData []string  `json:"requested_data,omitempty"` // empty = everything
}

// ConflictResolution is the client's answer to a reported conflict.
type ConflictResolution struct {
	ConflictID  string `json:"conflict_id"`
	ServerValue int64  `json:"server_value"`
	ClientValue int64  `json:"client_value"`
	Resolution  string `json:"resolution"` // merge | server_wins | client_wins
}
