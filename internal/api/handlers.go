package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gearfall-games/gearfall/internal/domain"
)

// addTaskRequest is the wire form of a queued task.
type addTaskRequest struct {
	Type       domain.ActivityType `json:"type"`
	DurationMs int64               `json:"duration_ms"`
	MaxRetries int                 `json:"max_retries,omitempty"`
	Data       domain.ActivityData `json:"data"`
}

func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	q, err := s.scheduler.Queue(playerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if q == nil {
		writeError(w, http.StatusNotFound, "queue not found")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	var req addTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task := domain.Task{
		Type:       req.Type,
		Duration:   time.Duration(req.DurationMs) * time.Millisecond,
		MaxRetries: req.MaxRetries,
		Data:       req.Data,
	}

	q, err := s.scheduler.AddTask(playerID, task)
	switch {
	case errors.Is(err, domain.ErrZeroDuration), errors.Is(err, domain.ErrInvalidActivity):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrQueueFull):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleStopTasks(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	err := s.scheduler.StopTasks(playerID)
	switch {
	case errors.Is(err, domain.ErrQueueNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stopped": true})
}

func (s *Server) handleCatchup(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")

	res, err := s.offline.Apply(playerID)
	switch {
	case errors.Is(err, domain.ErrCharacterNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
