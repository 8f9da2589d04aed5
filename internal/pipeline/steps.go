package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dvloznov/budget-bot/internal/categorize"
	"github.com/dvloznov/budget-bot/internal/gemini"
	"github.com/dvloznov/budget-bot/internal/ledger"
)

var (
	// ErrUnsupportedMedia is returned for uploads that are not images or PDFs.
	ErrUnsupportedMedia = errors.New("pipeline: receipt is not an image")
	// ErrNoTransactions is returned when nothing usable was read off a receipt.
	ErrNoTransactions = errors.New("pipeline: no amount found on receipt")
	// ErrInvalidReceipt is returned when a transaction read off a receipt
	// fails validation.
	ErrInvalidReceipt = errors.New("pipeline: invalid receipt transaction")
)

// Step 1: FetchPhotoStep downloads the receipt photo and detects its type.
type FetchPhotoStep struct {
	Storage StorageService
}

func (s *FetchPhotoStep) Execute(ctx context.Context, state *ReceiptState) error {
	data, err := s.Storage.FetchFromGCS(ctx, state.GCSURI)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("FetchPhoto: %s is empty", state.GCSURI)
	}

	mimeType := http.DetectContentType(data)
	if i := strings.IndexByte(mimeType, ';'); i != -1 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") && mimeType != "application/pdf" {
		return fmt.Errorf("FetchPhoto: %w: %s", ErrUnsupportedMedia, mimeType)
	}

	state.Image = data
	state.MIMEType = mimeType
	return nil
}

// Step 2: AnalyzeReceiptStep reads the photo with the model and turns the
// receipt into transactions.
type AnalyzeReceiptStep struct {
	Deps *Deps
}

func (s *AnalyzeReceiptStep) Execute(ctx context.Context, state *ReceiptState) error {
	receipt, err := s.Deps.Analyzer.AnalyzeReceipt(ctx, state.Image, state.MIMEType)
	if err != nil {
		return err
	}
	state.Receipt = receipt

	txs := gemini.ReceiptTransactions(receipt, s.Deps.Currencies, s.Deps.DefaultCurrency)
	if len(txs) == 0 {
		return ErrNoTransactions
	}

	now := s.Deps.now().UTC()
	validator := NewTransactionValidator(s.Deps.Currencies, now)
	for _, tx := range txs {
		tx.ID = uuid.New().String()
		tx.UserID = state.UserID
		tx.ReceiptURI = state.GCSURI
		tx.CreatedAt = now
		if tx.Date.IsZero() {
			tx.Date = now
		}
		if err := validator.Validate(tx); err != nil {
			return fmt.Errorf("AnalyzeReceipt: %w: %w", ErrInvalidReceipt, err)
		}
	}

	state.Transactions = txs
	return nil
}

// Step 3: CategorizeStep picks a category for every transaction.
type CategorizeStep struct {
	Categorizer Categorizer
}

func (s *CategorizeStep) Execute(ctx context.Context, state *ReceiptState) error {
	state.Suggestions = make([]*categorize.Result, len(state.Transactions))
	for i, tx := range state.Transactions {
		res, err := s.Categorizer.Categorize(ctx, state.UserID, tx.Description)
		if err != nil {
			return err
		}
		ledger.ApplyCategory(tx, res)
		state.Suggestions[i] = res
	}
	return nil
}

// Step 4: StoreTransactionsStep inserts the transactions.
type StoreTransactionsStep struct {
	Deps *Deps
}

func (s *StoreTransactionsStep) Execute(ctx context.Context, state *ReceiptState) error {
	if err := s.Deps.Transactions.InsertTransactions(ctx, state.Transactions); err != nil {
		return fmt.Errorf("StoreTransactions: %w", err)
	}
	return nil
}

// Step 5: RememberStep reinforces memory for auto-applied categories. The
// transactions are already stored, so failures are logged only.
type RememberStep struct {
	Deps *Deps
}

func (s *RememberStep) Execute(ctx context.Context, state *ReceiptState) error {
	for i, res := range state.Suggestions {
		if res == nil || !res.AutoApply {
			continue
		}
		tx := state.Transactions[i]
		if err := s.Deps.Memory.Remember(ctx, state.UserID, tx.Description, res.CategoryID, res.Confidence); err != nil {
			s.Deps.Log.Error().
				Err(err).
				Str("user_id", state.UserID).
				Str("transaction_id", tx.ID).
				Msg("Failed to reinforce category memory")
			continue
		}
		state.Remembered++
	}
	return nil
}
