package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/api/middleware"
	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/ledger"
)

// LedgerHandler handles parsing, categorisation and transaction endpoints.
type LedgerHandler struct {
	ledger Ledger
	log    zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(l Ledger, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger: l,
		log:    log,
	}
}

// Parse handles POST /api/parse
func (h *LedgerHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	parsed, err := h.ledger.Parse(req.Text)
	if err != nil {
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, parsed)
}

// Categorize handles POST /api/categorize
func (h *LedgerHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		Description string `json:"description"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || strings.TrimSpace(req.Description) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and description are required")
		return
	}

	res, err := h.ledger.Categorize(r.Context(), req.UserID, req.Description)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to categorize")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to categorize")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"result": res})
}

// ListCategories handles GET /api/categories
func (h *LedgerHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	categories, err := h.ledger.Categories(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// CreateTransaction handles POST /api/transactions
func (h *LedgerHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Text   string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	recorded, err := h.ledger.Record(r.Context(), req.UserID, req.Text)
	switch {
	case errors.Is(err, ledger.ErrMissingUser):
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	case errors.Is(err, ledger.ErrUnparseable):
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to record transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to record transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, recorded)
}

// ListTransactions handles GET /api/transactions
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
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

	transactions, err := h.ledger.List(r.Context(), userID, from, to)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	// arrays, never null
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}
