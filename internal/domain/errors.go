package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Queue errors
	ErrQueueNotFound = errors.New("task queue not found")
	ErrQueueFull     = errors.New("task queue is full")
	ErrQueuePaused   = errors.New("task queue is paused")

	// Task errors
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidActivity = errors.New("activity payload does not match task type")
	ErrZeroDuration    = errors.New("task duration must be positive")

	// Character errors
	ErrCharacterNotFound = errors.New("character not found")

	// Sync errors
	ErrConnectionNotFound = errors.New("connection not found")
	ErrUnknownResolution  = errors.New("unknown conflict resolution strategy")
)
