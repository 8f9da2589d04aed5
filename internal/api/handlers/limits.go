package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/budget-bot/internal/api/middleware"
	"github.com/dvloznov/budget-bot/internal/ledger"
)

// ListLimits handles GET /api/limits
func (h *LedgerHandler) ListLimits(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	limits, err := h.ledger.Limits(r.Context(), userID)
	if err != nil {
		h.writeLimitError(w, err, userID, "Failed to list limits")
		return
	}

	if limits == nil {
		limits = []ledger.LimitStatus{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"limits": limits,
		"count":  len(limits),
	})
}

// SetLimit handles POST /api/limits
func (h *LedgerHandler) SetLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string `json:"user_id"`
		CategoryID string `json:"category_id"`
		Amount     string `json:"amount"`
		Period     string `json:"period"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.CategoryID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and category_id are required")
		return
	}

	status, err := h.ledger.SetLimit(r.Context(), req.UserID, req.CategoryID, req.Amount, req.Period)
	if err != nil {
		h.writeLimitError(w, err, req.UserID, "Failed to set limit")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, status)
}

// DeleteLimit handles DELETE /api/limits/{id}
func (h *LedgerHandler) DeleteLimit(w http.ResponseWriter, r *http.Request, limitID string) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.ledger.DeleteLimit(r.Context(), userID, limitID); err != nil {
		h.writeLimitError(w, err, userID, "Failed to delete limit")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /api/summary
func (h *LedgerHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	from, to, msg := parseDateRange(r)
	if msg != "" {
		middleware.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	summary, err := h.ledger.Summary(r.Context(), userID, from, to)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to build summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

func (h *LedgerHandler) writeLimitError(w http.ResponseWriter, err error, userID, msg string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidLimit), errors.Is(err, ledger.ErrUnknownCategory):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrLimitExists):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrLimitNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Limit not found")
	case errors.Is(err, ledger.ErrLimitsDisabled):
		middleware.WriteError(w, http.StatusServiceUnavailable, "Spending limits are not configured")
	default:
		h.log.Error().Err(err).Str("user_id", userID).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}
