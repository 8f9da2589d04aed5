package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/api/middleware"
	"github.com/dvloznov/budget-bot/internal/categorymemory"
	"github.com/dvloznov/budget-bot/internal/jobs"
)

// MemoryHandler handles category memory endpoints.
type MemoryHandler struct {
	memory    Memory
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(memory Memory, publisher jobs.Publisher, log zerolog.Logger) *MemoryHandler {
	return &MemoryHandler{
		memory:    memory,
		publisher: publisher,
		log:       log,
	}
}

// Suggest handles POST /api/suggest
func (h *MemoryHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	suggestion, err := h.memory.Suggest(r.Context(), req.UserID, req.Description)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to suggest category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to suggest category")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"suggestion": suggestion})
}

// Remember handles POST /api/remember
func (h *MemoryHandler) Remember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string   `json:"user_id"`
		Description string   `json:"description"`
		CategoryID  string   `json:"category_id"`
		Confidence  *float64 `json:"confidence"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
		if confidence < 0 || confidence > 1 {
			middleware.WriteError(w, http.StatusBadRequest, "confidence must be within [0,1]")
			return
		}
	}

	err := h.memory.Remember(r.Context(), req.UserID, req.Description, req.CategoryID, confidence)
	switch {
	case errors.Is(err, categorymemory.ErrInvalidRecord):
		middleware.WriteError(w, http.StatusBadRequest, "user_id and category_id are required")
		return
	case err != nil:
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to remember category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to remember category")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "remembered"})
}

// ListPatterns handles GET /api/patterns
func (h *MemoryHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	patterns, err := h.memory.Patterns(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list patterns")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list patterns")
		return
	}
	if patterns == nil {
		patterns = []categorymemory.Record{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": patterns,
		"count":    len(patterns),
	})
}

// Cleanup handles POST /api/cleanup. The work runs as a background job.
func (h *MemoryHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	// an empty body cleans every user
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job := jobs.NewCleanupMemoryJob(req.UserID)
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue cleanup job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue cleanup job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("user_id", req.UserID).Msg("Cleanup job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}
