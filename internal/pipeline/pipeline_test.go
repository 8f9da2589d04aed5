package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-bot/internal/categorize"
	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/gemini"
	"github.com/dvloznov/budget-bot/internal/pipeline"
	"github.com/dvloznov/budget-bot/internal/txparse"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

// MockStorageService is a mock implementation of StorageService for testing.
type MockStorageService struct {
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return jpegBytes, nil
}

// MockReceiptAnalyzer is a mock implementation of ReceiptAnalyzer for testing.
type MockReceiptAnalyzer struct {
	AnalyzeReceiptFunc func(ctx context.Context, image []byte, mimeType string) (*gemini.Receipt, error)
}

func (m *MockReceiptAnalyzer) AnalyzeReceipt(ctx context.Context, image []byte, mimeType string) (*gemini.Receipt, error) {
	return m.AnalyzeReceiptFunc(ctx, image, mimeType)
}

type MockCategorizer struct {
	CategorizeFunc func(ctx context.Context, userID, description string) (*categorize.Result, error)
}

func (m *MockCategorizer) Categorize(ctx context.Context, userID, description string) (*categorize.Result, error) {
	return m.CategorizeFunc(ctx, userID, description)
}

type MockTransactionRepository struct {
	InsertFunc func(ctx context.Context, txs []*domain.Transaction) error
	inserted   []*domain.Transaction
}

func (m *MockTransactionRepository) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if m.InsertFunc != nil {
		if err := m.InsertFunc(ctx, txs); err != nil {
			return err
		}
	}
	m.inserted = append(m.inserted, txs...)
	return nil
}

func (m *MockTransactionRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	return m.inserted, nil
}

type MockRememberer struct {
	calls int
	err   error
}

func (m *MockRememberer) Remember(ctx context.Context, userID, description, categoryID string, confidence float64) error {
	m.calls++
	return m.err
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func receipt(total string) *gemini.Receipt {
	d := decimal.RequireFromString(total)
	date := "2024-05-30"
	return &gemini.Receipt{Currency: "EUR", TotalAmount: &d, StoreName: "Lidl", Date: &date}
}

type fixture struct {
	deps     *pipeline.Deps
	storage  *MockStorageService
	analyzer *MockReceiptAnalyzer
	cat      *MockCategorizer
	repo     *MockTransactionRepository
	memory   *MockRememberer
}

func newFixture() *fixture {
	f := &fixture{
		storage: &MockStorageService{},
		analyzer: &MockReceiptAnalyzer{AnalyzeReceiptFunc: func(ctx context.Context, image []byte, mimeType string) (*gemini.Receipt, error) {
			return receipt("23.45"), nil
		}},
		cat: &MockCategorizer{CategorizeFunc: func(ctx context.Context, userID, description string) (*categorize.Result, error) {
			return &categorize.Result{CategoryID: "c-food", CategoryName: "Продукты", Confidence: 0.95, AutoApply: true, Source: categorize.SourceMemory}, nil
		}},
		repo:   &MockTransactionRepository{},
		memory: &MockRememberer{},
	}
	f.deps = &pipeline.Deps{
		Storage:         f.storage,
		Analyzer:        f.analyzer,
		Categorizer:     f.cat,
		Transactions:    f.repo,
		Memory:          f.memory,
		Currencies:      txparse.DefaultCurrencyTable(),
		DefaultCurrency: "EUR",
		Log:             zerolog.Nop(),
		Now:             func() time.Time { return fixedNow },
	}
	return f
}

func TestProcessReceipt(t *testing.T) {
	f := newFixture()
	var gotMIME string
	f.analyzer.AnalyzeReceiptFunc = func(ctx context.Context, image []byte, mimeType string) (*gemini.Receipt, error) {
		gotMIME = mimeType
		return receipt("23.45"), nil
	}

	state, err := pipeline.ProcessReceipt(context.Background(), f.deps, "u1", "gs://bucket/receipts/u1/a.jpg")
	if err != nil {
		t.Fatalf("ProcessReceipt failed: %v", err)
	}

	if gotMIME != "image/jpeg" {
		t.Errorf("MIME type = %q, want image/jpeg", gotMIME)
	}
	if len(f.repo.inserted) != 1 {
		t.Fatalf("inserted %d transactions, want 1", len(f.repo.inserted))
	}

	tx := f.repo.inserted[0]
	if tx.UserID != "u1" || tx.ReceiptURI != "gs://bucket/receipts/u1/a.jpg" || tx.ID == "" {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if tx.Description != "Lidl (чек)" || tx.Amount.String() != "23.45" || tx.Currency != "EUR" {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if tx.Date.Format("2006-01-02") != "2024-05-30" || !tx.CreatedAt.Equal(fixedNow) {
		t.Errorf("dates: %v, %v", tx.Date, tx.CreatedAt)
	}
	if tx.CategoryID != "c-food" || tx.CategorySource != categorize.SourceMemory {
		t.Errorf("category not applied: %+v", tx)
	}
	if f.memory.calls != 1 || state.Remembered != 1 {
		t.Errorf("remember calls = %d, state.Remembered = %d", f.memory.calls, state.Remembered)
	}
}

func TestProcessReceipt_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		wantErr error
	}{
		{
			name: "fetch fails",
			setup: func(f *fixture) {
				f.storage.FetchFromGCSFunc = func(ctx context.Context, gcsURI string) ([]byte, error) {
					return nil, errors.New("not found")
				}
			},
		},
		{
			name: "not an image",
			setup: func(f *fixture) {
				f.storage.FetchFromGCSFunc = func(ctx context.Context, gcsURI string) ([]byte, error) {
					return []byte("just some text"), nil
				}
			},
			wantErr: pipeline.ErrUnsupportedMedia,
		},
		{
			name: "model fails",
			setup: func(f *fixture) {
				f.analyzer.AnalyzeReceiptFunc = func(ctx context.Context, image []byte, mimeType string) (*gemini.Receipt, error) {
					return nil, gemini.ErrEmptyResponse
				}
			},
			wantErr: gemini.ErrEmptyResponse,
		},
		{
			name: "no amount",
			setup: func(f *fixture) {
				f.analyzer.AnalyzeReceiptFunc = func(ctx context.Context, image []byte, mimeType string) (*gemini.Receipt, error) {
					return &gemini.Receipt{StoreName: "Lidl"}, nil
				}
			},
			wantErr: pipeline.ErrNoTransactions,
		},
		{
			name: "currency outside the table",
			setup: func(f *fixture) {
				f.deps.DefaultCurrency = "PLN"
				f.analyzer.AnalyzeReceiptFunc = func(ctx context.Context, image []byte, mimeType string) (*gemini.Receipt, error) {
					total := decimal.RequireFromString("12.50")
					return &gemini.Receipt{StoreName: "Biedronka", Currency: "zł", TotalAmount: &total}, nil
				}
			},
			wantErr: pipeline.ErrInvalidReceipt,
		},
		{
			name: "storage fails",
			setup: func(f *fixture) {
				f.repo.InsertFunc = func(ctx context.Context, txs []*domain.Transaction) error {
					return errors.New("bq unavailable")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			_, err := pipeline.ProcessReceipt(context.Background(), f.deps, "u1", "gs://bucket/a.jpg")
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if f.memory.calls != 0 {
				t.Error("memory must not be touched when the pipeline fails")
			}
		})
	}
}

func TestProcessReceipt_RememberOnlyAutoApplied(t *testing.T) {
	f := newFixture()
	f.cat.CategorizeFunc = func(ctx context.Context, userID, description string) (*categorize.Result, error) {
		return &categorize.Result{CategoryID: "c-food", Confidence: 0.7, Source: categorize.SourceKeywords}, nil
	}

	if _, err := pipeline.ProcessReceipt(context.Background(), f.deps, "u1", "gs://bucket/a.jpg"); err != nil {
		t.Fatalf("ProcessReceipt failed: %v", err)
	}
	if f.memory.calls != 0 {
		t.Errorf("remember calls = %d, want 0 for a suggestion that was not auto-applied", f.memory.calls)
	}
}

func TestProcessReceipt_MemoryFailureIsNotFatal(t *testing.T) {
	f := newFixture()
	f.memory.err = errors.New("memory down")

	state, err := pipeline.ProcessReceipt(context.Background(), f.deps, "u1", "gs://bucket/a.jpg")
	if err != nil {
		t.Fatalf("ProcessReceipt should succeed, got %v", err)
	}
	if state.Remembered != 0 || len(f.repo.inserted) != 1 {
		t.Errorf("unexpected state: remembered=%d inserted=%d", state.Remembered, len(f.repo.inserted))
	}
}

func TestProcessReceipt_RequiresInput(t *testing.T) {
	if _, err := pipeline.ProcessReceipt(context.Background(), newFixture().deps, "", "gs://bucket/a.jpg"); err == nil {
		t.Error("expected an error without a user")
	}
}
