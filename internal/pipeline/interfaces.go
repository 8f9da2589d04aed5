package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/categorize"
	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/gemini"
	"github.com/dvloznov/budget-bot/internal/txparse"
)

// StorageService fetches receipt photos.
type StorageService interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// ReceiptAnalyzer reads a receipt photo.
// This interface enables mocking and testing of the model call.
type ReceiptAnalyzer interface {
	AnalyzeReceipt(ctx context.Context, image []byte, mimeType string) (*gemini.Receipt, error)
}

// Categorizer picks a category for a user's description. ledger.Service
// implements it.
type Categorizer interface {
	Categorize(ctx context.Context, userID, description string) (*categorize.Result, error)
}

// Rememberer reinforces the user's category memory.
type Rememberer interface {
	Remember(ctx context.Context, userID, description, categoryID string, confidence float64) error
}

// Deps are the collaborators of the receipt pipeline.
type Deps struct {
	Storage      StorageService
	Analyzer     ReceiptAnalyzer
	Categorizer  Categorizer
	Transactions domain.TransactionRepository
	Memory       Rememberer

	Currencies      *txparse.CurrencyTable
	DefaultCurrency string

	Log zerolog.Logger
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
