// Package api wires the HTTP handlers and middleware of the budget service.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/api/handlers"
	"github.com/dvloznov/budget-bot/internal/api/middleware"
	"github.com/dvloznov/budget-bot/internal/jobs"
)

// Deps are the services behind the API.
type Deps struct {
	Ledger    handlers.Ledger
	Memory    handlers.Memory
	Uploader  handlers.ReceiptUploader
	Publisher jobs.Publisher
	JobStore  jobs.JobStore
	APIKey    string
	Log       zerolog.Logger
}

// method routes a path to h only for the given HTTP method.
func method(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

// NewHandler builds the routed, middleware-wrapped API handler.
func NewHandler(deps Deps) http.Handler {
	log := deps.Log
	ledgerHandler := handlers.NewLedgerHandler(deps.Ledger, log)
	memoryHandler := handlers.NewMemoryHandler(deps.Memory, deps.Publisher, log)
	receiptsHandler := handlers.NewReceiptsHandler(deps.Uploader, deps.Publisher, log)
	jobsHandler := handlers.NewJobsHandler(deps.JobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/parse", method(http.MethodPost, ledgerHandler.Parse))
	mux.HandleFunc("/api/categorize", method(http.MethodPost, ledgerHandler.Categorize))
	mux.HandleFunc("/api/categories", method(http.MethodGet, ledgerHandler.ListCategories))

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ledgerHandler.ListTransactions(w, r)
		case http.MethodPost:
			ledgerHandler.CreateTransaction(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/summary", method(http.MethodGet, ledgerHandler.Summary))

	mux.HandleFunc("/api/limits", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ledgerHandler.ListLimits(w, r)
		case http.MethodPost:
			ledgerHandler.SetLimit(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
	mux.HandleFunc("/api/limits/", method(http.MethodDelete, func(w http.ResponseWriter, r *http.Request) {
		limitID := strings.TrimPrefix(r.URL.Path, "/api/limits/")
		if limitID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Limit ID is required")
			return
		}
		ledgerHandler.DeleteLimit(w, r, limitID)
	}))

	mux.HandleFunc("/api/suggest", method(http.MethodPost, memoryHandler.Suggest))
	mux.HandleFunc("/api/remember", method(http.MethodPost, memoryHandler.Remember))
	mux.HandleFunc("/api/patterns", method(http.MethodGet, memoryHandler.ListPatterns))
	mux.HandleFunc("/api/cleanup", method(http.MethodPost, memoryHandler.Cleanup))

	mux.HandleFunc("/api/receipts", method(http.MethodPost, receiptsHandler.Upload))

	mux.HandleFunc("/api/jobs", method(http.MethodGet, jobsHandler.ListJobs))
	mux.HandleFunc("/api/jobs/", method(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
		middleware.Auth(deps.APIKey),
	)
}
