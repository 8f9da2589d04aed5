package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-bot/internal/categorize"
	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/gemini"
	"github.com/dvloznov/budget-bot/internal/jobs"
	"github.com/dvloznov/budget-bot/internal/pipeline"
	"github.com/dvloznov/budget-bot/internal/txparse"
)

type MockStorageService struct {
	data []byte
	err  error
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return m.data, m.err
}

type MockReceiptAnalyzer struct {
	receipt *gemini.Receipt
}

func (m *MockReceiptAnalyzer) AnalyzeReceipt(ctx context.Context, image []byte, mimeType string) (*gemini.Receipt, error) {
	return m.receipt, nil
}

type MockCategorizer struct{}

func (MockCategorizer) Categorize(ctx context.Context, userID, description string) (*categorize.Result, error) {
	return nil, nil
}

type MockTransactionRepository struct {
	inserted []*domain.Transaction
}

func (m *MockTransactionRepository) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	m.inserted = append(m.inserted, txs...)
	return nil
}

func (m *MockTransactionRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	return m.inserted, nil
}

type MockRememberer struct{}

func (MockRememberer) Remember(ctx context.Context, userID, description, categoryID string, confidence float64) error {
	return nil
}

type MockMemoryCleaner struct {
	users []string
	n     int64
	err   error
}

func (m *MockMemoryCleaner) Cleanup(ctx context.Context, userID string) (int64, error) {
	m.users = append(m.users, userID)
	return m.n, m.err
}

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

func newDeps(storage *MockStorageService, r *gemini.Receipt) (*pipeline.Deps, *MockTransactionRepository) {
	repo := &MockTransactionRepository{}
	return &pipeline.Deps{
		Storage:         storage,
		Analyzer:        &MockReceiptAnalyzer{receipt: r},
		Categorizer:     MockCategorizer{},
		Transactions:    repo,
		Memory:          MockRememberer{},
		Currencies:      txparse.DefaultCurrencyTable(),
		DefaultCurrency: "EUR",
		Log:             zerolog.Nop(),
	}, repo
}

func TestProcessReceiptHandler(t *testing.T) {
	total := decimal.RequireFromString("9.99")
	deps, repo := newDeps(&MockStorageService{data: jpegBytes}, &gemini.Receipt{TotalAmount: &total, StoreName: "Rewe"})
	h := ProcessReceiptHandler(deps, zerolog.Nop())

	job := jobs.NewProcessReceiptJob("u1", "gs://b/receipts/u1/a.jpg")
	if err := h(context.Background(), job); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if job.Result != "1 transactions" || len(repo.inserted) != 1 {
		t.Errorf("Result = %q, inserted = %d", job.Result, len(repo.inserted))
	}
}

func TestProcessReceiptHandler_ErrorClassification(t *testing.T) {
	total := decimal.RequireFromString("9.99")
	tests := []struct {
		name          string
		job           *jobs.Job
		storage       *MockStorageService
		receipt       *gemini.Receipt
		wantPermanent bool
	}{
		{"missing uri", jobs.NewProcessReceiptJob("u1", ""), &MockStorageService{data: jpegBytes}, nil, true},
		{"not an image", jobs.NewProcessReceiptJob("u1", "gs://b/a.txt"), &MockStorageService{data: []byte("hello")}, nil, true},
		{"nothing to record", jobs.NewProcessReceiptJob("u1", "gs://b/a.jpg"), &MockStorageService{data: jpegBytes}, &gemini.Receipt{StoreName: "Rewe"}, true},
		{"storage outage", jobs.NewProcessReceiptJob("u1", "gs://b/a.jpg"), &MockStorageService{err: errors.New("503")}, &gemini.Receipt{TotalAmount: &total}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _ := newDeps(tt.storage, tt.receipt)
			err := ProcessReceiptHandler(deps, zerolog.Nop())(context.Background(), tt.job)
			if err == nil {
				t.Fatal("expected an error")
			}
			if jobs.IsPermanent(err) != tt.wantPermanent {
				t.Errorf("IsPermanent = %v, want %v (err %v)", jobs.IsPermanent(err), tt.wantPermanent, err)
			}
		})
	}
}

func TestProcessReceiptHandler_InvalidReceiptIsPermanent(t *testing.T) {
	total := decimal.RequireFromString("12.50")
	deps, repo := newDeps(&MockStorageService{data: jpegBytes}, &gemini.Receipt{StoreName: "Biedronka", Currency: "zł", TotalAmount: &total})
	deps.DefaultCurrency = "PLN"

	err := ProcessReceiptHandler(deps, zerolog.Nop())(context.Background(), jobs.NewProcessReceiptJob("u1", "gs://b/a.jpg"))
	if !errors.Is(err, pipeline.ErrInvalidReceipt) || !jobs.IsPermanent(err) {
		t.Errorf("expected a permanent ErrInvalidReceipt, got %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Errorf("nothing should be stored, got %d", len(repo.inserted))
	}
}

func TestProcessReceiptHandler_Disabled(t *testing.T) {
	err := ProcessReceiptHandler(nil, zerolog.Nop())(context.Background(), jobs.NewProcessReceiptJob("u1", "gs://b/a.jpg"))
	if !errors.Is(err, ErrReceiptsDisabled) || !jobs.IsPermanent(err) {
		t.Errorf("expected permanent ErrReceiptsDisabled, got %v", err)
	}
}

func TestCleanupMemoryHandler(t *testing.T) {
	cleaner := &MockMemoryCleaner{n: 4}
	h := CleanupMemoryHandler(cleaner, zerolog.Nop())

	job := jobs.NewCleanupMemoryJob("")
	if err := h(context.Background(), job); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if job.Result != "4 records removed" || len(cleaner.users) != 1 || cleaner.users[0] != "" {
		t.Errorf("Result = %q, users = %v", job.Result, cleaner.users)
	}

	cleaner.err = errors.New("bq down")
	if err := h(context.Background(), jobs.NewCleanupMemoryJob("u1")); err == nil || jobs.IsPermanent(err) {
		t.Errorf("store errors should be retryable, got %v", err)
	}
}

func TestNewRouter(t *testing.T) {
	cleaner := &MockMemoryCleaner{}
	deps, _ := newDeps(&MockStorageService{data: jpegBytes}, nil)
	r := NewRouter(deps, cleaner, zerolog.Nop())

	if err := r.Handle(context.Background(), jobs.NewCleanupMemoryJob("u7")); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(cleaner.users) != 1 || cleaner.users[0] != "u7" {
		t.Errorf("cleanup not routed: %v", cleaner.users)
	}
}

type recordingPublisher struct {
	mu   sync.Mutex
	jobs []*jobs.Job
}

func (p *recordingPublisher) Publish(ctx context.Context, job *jobs.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	job.JobID = "scheduled"
	p.jobs = append(p.jobs, job)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

func TestScheduleCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pub := &recordingPublisher{}

	done := make(chan struct{})
	go func() {
		ScheduleCleanup(ctx, pub, time.Millisecond, zerolog.Nop())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	if pub.count() < 2 {
		t.Fatalf("published %d cleanup jobs, want at least 2", pub.count())
	}
	if j := pub.jobs[0]; j.Type != jobs.JobTypeCleanupMemory || j.UserID != "" {
		t.Errorf("unexpected job %+v", j)
	}
}
