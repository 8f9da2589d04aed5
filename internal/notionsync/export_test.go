package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-bot/internal/domain"
)

// MockNotionService is a mock implementation of NotionService for testing.
type MockNotionService struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	created []notionapi.Properties
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	if m.CreatePageFunc != nil {
		if _, err := m.CreatePageFunc(ctx, databaseID, properties); err != nil {
			return nil, err
		}
	}
	m.created = append(m.created, properties)
	return &notionapi.Page{ID: "page"}, nil
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.QueryDatabaseFunc != nil {
		return m.QueryDatabaseFunc(ctx, databaseID, filter)
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

type MockTransactionRepository struct {
	txs     []*domain.Transaction
	err     error
	filters []domain.TransactionFilter
}

func (m *MockTransactionRepository) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	return nil
}

func (m *MockTransactionRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	m.filters = append(m.filters, filter)
	return m.txs, m.err
}

func pageWithTransactionID(id string) notionapi.Page {
	return notionapi.Page{
		Properties: notionapi.Properties{
			PropTransactionID: &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: id}},
			},
		},
	}
}

func sampleTransactions() []*domain.Transaction {
	day := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	return []*domain.Transaction{
		{ID: "t1", UserID: "u1", Date: day, Amount: decimal.RequireFromString("12.50"), Currency: "EUR", Description: "продукты", CategoryName: "Продукты", Source: domain.SourceText},
		{ID: "t2", UserID: "u1", Date: day, Amount: decimal.NewFromInt(2000), Currency: "EUR", IsIncome: true, Description: "зарплата", Source: domain.SourceText},
		{ID: "t3", UserID: "u1", Date: day, Amount: decimal.NewFromInt(7), Currency: "USD", Description: "Lidl (чек)", Source: domain.SourceReceipt},
	}
}

func TestExportTransactions_SkipsExistingPages(t *testing.T) {
	repo := &MockTransactionRepository{txs: sampleTransactions()}
	var cursors []notionapi.Cursor
	notion := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			cursors = append(cursors, filter.StartCursor)
			if filter.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{pageWithTransactionID("t1")},
					HasMore:    true,
					NextCursor: "c1",
				}, nil
			}
			return &notionapi.DatabaseQueryResponse{
				Results: []notionapi.Page{pageWithTransactionID("t3"), {}},
			}, nil
		},
	}

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	stats, err := ExportTransactions(context.Background(), repo, notion, "db", "u1", from, to, false)
	if err != nil {
		t.Fatalf("ExportTransactions failed: %v", err)
	}

	want := ExportStats{Total: 3, Created: 1, Skipped: 2}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if len(cursors) != 2 || cursors[1] != "c1" {
		t.Errorf("pagination cursors = %v", cursors)
	}
	if len(notion.created) != 1 {
		t.Fatalf("created %d pages, want 1", len(notion.created))
	}
	if f := repo.filters[0]; f.UserID != "u1" || !f.From.Equal(from) || !f.To.Equal(to) {
		t.Errorf("unexpected filter %+v", f)
	}
}

func TestExportTransactions_DryRunWritesNothing(t *testing.T) {
	notion := &MockNotionService{}
	stats, err := ExportTransactions(context.Background(), &MockTransactionRepository{txs: sampleTransactions()}, notion, "db", "u1", time.Time{}, time.Time{}, true)
	if err != nil {
		t.Fatalf("ExportTransactions failed: %v", err)
	}
	if stats.Created != 3 || len(notion.created) != 0 {
		t.Errorf("dry run: stats %+v, pages written %d", stats, len(notion.created))
	}
}

func TestExportTransactions_CountsFailures(t *testing.T) {
	notion := &MockNotionService{
		CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
			if extractTitle(properties) == "зарплата" {
				return nil, errors.New("rate limited")
			}
			return nil, nil
		},
	}
	stats, err := ExportTransactions(context.Background(), &MockTransactionRepository{txs: sampleTransactions()}, notion, "db", "u1", time.Time{}, time.Time{}, false)
	if err != nil {
		t.Fatalf("ExportTransactions failed: %v", err)
	}
	if stats.Created != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestExportTransactions_Errors(t *testing.T) {
	ctx := context.Background()
	repo := &MockTransactionRepository{}

	if _, err := ExportTransactions(ctx, repo, &MockNotionService{}, "", "u1", time.Time{}, time.Time{}, false); err == nil {
		t.Error("expected error without database id")
	}
	if _, err := ExportTransactions(ctx, repo, &MockNotionService{}, "db", "", time.Time{}, time.Time{}, false); err == nil {
		t.Error("expected error without user id")
	}

	failing := &MockTransactionRepository{err: errors.New("bq down")}
	if _, err := ExportTransactions(ctx, failing, &MockNotionService{}, "db", "u1", time.Time{}, time.Time{}, false); err == nil {
		t.Error("expected repository error")
	}

	notion := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, errors.New("unauthorized")
		},
	}
	if _, err := ExportTransactions(ctx, repo, notion, "db", "u1", time.Time{}, time.Time{}, false); err == nil {
		t.Error("expected query error")
	}
}

func extractTitle(props notionapi.Properties) string {
	if title, ok := props[PropDescription].(notionapi.TitleProperty); ok && len(title.Title) > 0 {
		return title.Title[0].Text.Content
	}
	return ""
}

func TestTransactionToNotionProperties(t *testing.T) {
	txs := sampleTransactions()

	expense := TransactionToNotionProperties(txs[0], "Продукты")
	if got := extractTitle(expense); got != "продукты" {
		t.Errorf("title = %q", got)
	}
	if n := expense[PropAmount].(notionapi.NumberProperty).Number; n != -12.5 {
		t.Errorf("expense amount = %v, want -12.5", n)
	}
	if s := expense[PropType].(notionapi.SelectProperty).Select.Name; s != TypeExpense {
		t.Errorf("type = %q", s)
	}
	if s := expense[PropCategory].(notionapi.SelectProperty).Select.Name; s != "Продукты" {
		t.Errorf("category = %q", s)
	}
	if id := expense[PropTransactionID].(notionapi.RichTextProperty).RichText[0].Text.Content; id != "t1" {
		t.Errorf("transaction id = %q", id)
	}
	date := expense[PropDate].(notionapi.DateProperty).Date.Start
	if time.Time(*date).Format(time.DateOnly) != "2024-05-03" {
		t.Errorf("date = %v", time.Time(*date))
	}

	income := TransactionToNotionProperties(txs[1], "")
	if n := income[PropAmount].(notionapi.NumberProperty).Number; n != 2000 {
		t.Errorf("income amount = %v", n)
	}
	if s := income[PropType].(notionapi.SelectProperty).Select.Name; s != TypeIncome {
		t.Errorf("type = %q", s)
	}
	if _, ok := income[PropCategory]; ok {
		t.Error("empty category name must not set the Category property")
	}
}
