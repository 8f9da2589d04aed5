package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/categorize"
	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/txparse"
)

type mockTransactionRepo struct {
	InsertTransactionsFn func(ctx context.Context, txs []*domain.Transaction) error
	ListTransactionsFn   func(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error)
	inserted             []*domain.Transaction
}

func (m *mockTransactionRepo) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if m.InsertTransactionsFn != nil {
		if err := m.InsertTransactionsFn(ctx, txs); err != nil {
			return err
		}
	}
	m.inserted = append(m.inserted, txs...)
	return nil
}

func (m *mockTransactionRepo) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	if m.ListTransactionsFn != nil {
		return m.ListTransactionsFn(ctx, filter)
	}
	return m.inserted, nil
}

type mockCategoryRepo struct {
	cats []domain.Category
	err  error
}

func (m *mockCategoryRepo) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Category
	for _, c := range m.cats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCategoryRepo) InsertCategory(ctx context.Context, cat domain.Category) error {
	m.cats = append(m.cats, cat)
	return nil
}

type rememberCall struct {
	userID, description, categoryID string
	confidence                      float64
}

type mockMemory struct {
	calls []rememberCall
	err   error
}

func (m *mockMemory) Remember(ctx context.Context, userID, description, categoryID string, confidence float64) error {
	m.calls = append(m.calls, rememberCall{userID, description, categoryID, confidence})
	return m.err
}

type fixture struct {
	svc    *Service
	txs    *mockTransactionRepo
	cats   *mockCategoryRepo
	memory *mockMemory
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newFixture(cats ...domain.Category) *fixture {
	f := &fixture{
		txs:    &mockTransactionRepo{},
		cats:   &mockCategoryRepo{cats: cats},
		memory: &mockMemory{},
	}
	chain := categorize.NewChain(zerolog.Nop(), categorize.Exact{}, categorize.Substring{}, categorize.NewKeywords())
	parser := txparse.New(txparse.DefaultCurrencyTable(), "EUR")
	f.svc = NewService(parser, chain, f.memory, f.txs, f.cats, "Прочее", zerolog.Nop()).
		WithClock(func() time.Time { return fixedNow })
	return f
}

func userCategories() []domain.Category {
	return []domain.Category{
		{ID: "c-food", UserID: "u1", Name: "Продукты"},
		{ID: "c-cafe", UserID: "u1", Name: "Ресторан"},
		{ID: "c-other", UserID: "u1", Name: "Прочее"},
	}
}

func TestService_Record(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantCategory string
		wantSource   string
		wantAmount   string
		wantIncome   bool
		wantRemember bool
	}{
		{"exact category auto-applies", "35 евро продукты", "c-food", categorize.SourceExact, "35", false, true},
		{"keyword", "4.5 кофе", "c-cafe", categorize.SourceKeywords, "4.5", false, false},
		{"fallback", "+2000 зарплата", "c-other", categorize.SourceFallback, "2000", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(userCategories()...)

			rec, err := f.svc.Record(context.Background(), "u1", tt.text)
			if err != nil {
				t.Fatalf("Record failed: %v", err)
			}

			tx := rec.Transaction
			if tx.CategoryID != tt.wantCategory || tx.CategorySource != tt.wantSource {
				t.Errorf("category = %s/%s, want %s/%s", tx.CategoryID, tx.CategorySource, tt.wantCategory, tt.wantSource)
			}
			if tx.Amount.String() != tt.wantAmount || tx.IsIncome != tt.wantIncome {
				t.Errorf("amount = %s income=%v", tx.Amount, tx.IsIncome)
			}
			if !tx.Date.Equal(fixedNow) || tx.Source != domain.SourceText || tx.ID == "" {
				t.Errorf("unexpected transaction %+v", tx)
			}
			if len(f.txs.inserted) != 1 {
				t.Errorf("inserted %d transactions, want 1", len(f.txs.inserted))
			}
			if (len(f.memory.calls) == 1) != tt.wantRemember {
				t.Errorf("remember calls = %v, want remember: %v", f.memory.calls, tt.wantRemember)
			}
		})
	}
}

func TestService_RecordUnparseable(t *testing.T) {
	f := newFixture(userCategories()...)

	_, err := f.svc.Record(context.Background(), "u1", "привет")
	if !errors.Is(err, ErrUnparseable) {
		t.Errorf("expected ErrUnparseable, got %v", err)
	}
	if len(f.txs.inserted) != 0 {
		t.Error("nothing should be stored")
	}

	if _, err := f.svc.Record(context.Background(), "", "35 продукты"); !errors.Is(err, ErrMissingUser) {
		t.Errorf("expected ErrMissingUser, got %v", err)
	}
}

func TestService_RecordStorageError(t *testing.T) {
	f := newFixture(userCategories()...)
	f.txs.InsertTransactionsFn = func(ctx context.Context, txs []*domain.Transaction) error {
		return errors.New("bq unavailable")
	}

	if _, err := f.svc.Record(context.Background(), "u1", "35 евро продукты"); err == nil {
		t.Fatal("expected an error")
	}
	if len(f.memory.calls) != 0 {
		t.Error("memory must not be reinforced when storing fails")
	}
}

func TestService_RecordMemoryErrorIsNotFatal(t *testing.T) {
	f := newFixture(userCategories()...)
	f.memory.err = errors.New("memory down")

	if _, err := f.svc.Record(context.Background(), "u1", "35 евро продукты"); err != nil {
		t.Errorf("Record should succeed when memory fails, got %v", err)
	}
}

func TestService_CategoriesCreatesDefaults(t *testing.T) {
	f := newFixture()

	cats, err := f.svc.Categories(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(cats) != len(domain.DefaultCategoryNames) {
		t.Fatalf("got %d categories, want %d", len(cats), len(domain.DefaultCategoryNames))
	}

	again, err := f.svc.Categories(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	if len(again) != len(cats) {
		t.Errorf("defaults created twice: %d categories", len(again))
	}
}

func TestService_Confirm(t *testing.T) {
	f := newFixture(userCategories()...)

	if err := f.svc.Confirm(context.Background(), "u1", "кофе старбакс", "c-cafe"); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	want := rememberCall{"u1", "кофе старбакс", "c-cafe", 1.0}
	if len(f.memory.calls) != 1 || f.memory.calls[0] != want {
		t.Errorf("remember calls = %+v, want %+v", f.memory.calls, want)
	}

	err := f.svc.Confirm(context.Background(), "u1", "кофе", "someone-elses")
	if !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestService_List(t *testing.T) {
	f := newFixture(userCategories()...)
	var got domain.TransactionFilter
	f.txs.ListTransactionsFn = func(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
		got = filter
		return nil, nil
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.List(context.Background(), "u1", from, to); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if got.UserID != "u1" || !got.From.Equal(from) || !got.To.Equal(to) {
		t.Errorf("filter = %+v", got)
	}

	if _, err := f.svc.List(context.Background(), "u1", to, from); err == nil {
		t.Error("expected an error for a reversed range")
	}
}
