package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/budget-bot/internal/categorize"
	"github.com/dvloznov/budget-bot/internal/categorymemory"
	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/ledger"
	"github.com/dvloznov/budget-bot/internal/txparse"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// Ledger is the transaction service behind the API. ledger.Service implements it.
type Ledger interface {
	Parse(text string) (txparse.ParsedTransaction, error)
	Categories(ctx context.Context, userID string) ([]categorize.Category, error)
	Categorize(ctx context.Context, userID, description string) (*categorize.Result, error)
	Record(ctx context.Context, userID, text string) (*ledger.Recorded, error)
	List(ctx context.Context, userID string, from, to time.Time) ([]*domain.Transaction, error)
	Summary(ctx context.Context, userID string, from, to time.Time) (*ledger.Summary, error)
	SetLimit(ctx context.Context, userID, categoryID, text, period string) (*ledger.LimitStatus, error)
	Limits(ctx context.Context, userID string) ([]ledger.LimitStatus, error)
	DeleteLimit(ctx context.Context, userID, limitID string) error
}

// Memory is the category memory. categorymemory.Matcher implements it.
type Memory interface {
	Suggest(ctx context.Context, userID, description string) (*categorymemory.Suggestion, error)
	Remember(ctx context.Context, userID, description, categoryID string, confidence float64) error
	Patterns(ctx context.Context, userID string) ([]categorymemory.Record, error)
}

// ReceiptUploader stores receipt photos and returns their gs:// URI.
type ReceiptUploader interface {
	UploadReceipt(ctx context.Context, userID string, data []byte, contentType string) (string, error)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	return json.NewDecoder(r.Body).Decode(v)
}

// parseDateParam parses an optional YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, v)
}

// parseDateRange reads the from and to query parameters. msg is the client
// error when they are malformed or reversed.
func parseDateRange(r *http.Request) (from, to time.Time, msg string) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		return from, to, "Invalid from date, expected YYYY-MM-DD"
	}
	to, err = parseDateParam(r, "to")
	if err != nil {
		return from, to, "Invalid to date, expected YYYY-MM-DD"
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, "to must not be before from"
	}
	return from, to, ""
}

var (
	_ Ledger = (*ledger.Service)(nil)
	_ Memory = (*categorymemory.Matcher)(nil)
)
