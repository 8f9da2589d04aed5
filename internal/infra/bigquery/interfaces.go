package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budget-bot/internal/categorymemory"
	"github.com/dvloznov/budget-bot/internal/domain"
)

// Repository is the BigQuery implementation of the transaction, category,
// limit and category memory stores. It holds one shared client for all operations.
type Repository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewRepository creates a Repository with its own BigQuery client.
func NewRepository(ctx context.Context, ds Dataset) (*Repository, error) {
	if err := ds.validate(); err != nil {
		return nil, fmt.Errorf("NewRepository: %w", err)
	}
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client: client,
		ds:     ds,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// InsertTransactions delegates to InsertTransactionsWithClient with the shared client.
func (r *Repository) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	return InsertTransactionsWithClient(ctx, r.client, r.ds, txs)
}

// ListTransactions delegates to QueryTransactionsWithClient with the shared client.
func (r *Repository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	return QueryTransactionsWithClient(ctx, r.client, r.ds, filter)
}

// ListCategories delegates to ListActiveCategoriesWithClient with the shared client.
func (r *Repository) ListCategories(ctx context.Context, userID string) ([]domain.Category, error) {
	return ListActiveCategoriesWithClient(ctx, r.client, r.ds, userID)
}

// InsertCategory delegates to InsertCategoryWithClient with the shared client.
func (r *Repository) InsertCategory(ctx context.Context, cat domain.Category) error {
	return InsertCategoryWithClient(ctx, r.client, r.ds, cat)
}

// ListLimits delegates to ListLimitsWithClient with the shared client.
func (r *Repository) ListLimits(ctx context.Context, userID string) ([]domain.Limit, error) {
	return ListLimitsWithClient(ctx, r.client, r.ds, userID)
}

// InsertLimit delegates to InsertLimitWithClient with the shared client.
func (r *Repository) InsertLimit(ctx context.Context, limit domain.Limit) error {
	return InsertLimitWithClient(ctx, r.client, r.ds, limit)
}

// DeleteLimit delegates to DeleteLimitWithClient with the shared client.
func (r *Repository) DeleteLimit(ctx context.Context, userID, limitID string) (bool, error) {
	return DeleteLimitWithClient(ctx, r.client, r.ds, userID, limitID)
}

// MemoryStore returns a categorymemory.Store backed by the same client.
func (r *Repository) MemoryStore() *MemoryStore {
	return &MemoryStore{repo: r}
}

// MemoryStore adapts Repository to categorymemory.Store. The store method
// names overlap with the transaction and category ones, hence a separate type.
type MemoryStore struct {
	repo *Repository
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string) ([]categorymemory.Record, error) {
	return ListCategoryMemoryWithClient(ctx, s.repo.client, s.repo.ds, userID)
}

func (s *MemoryStore) Insert(ctx context.Context, rec categorymemory.Record) error {
	return InsertCategoryMemoryWithClient(ctx, s.repo.client, s.repo.ds, rec)
}

func (s *MemoryStore) Update(ctx context.Context, rec categorymemory.Record) error {
	return UpdateCategoryMemoryWithClient(ctx, s.repo.client, s.repo.ds, rec)
}

func (s *MemoryStore) DeleteStale(ctx context.Context, filter categorymemory.StaleFilter) (int64, error) {
	return DeleteStaleCategoryMemoryWithClient(ctx, s.repo.client, s.repo.ds, filter)
}

var (
	_ domain.TransactionRepository = (*Repository)(nil)
	_ domain.CategoryRepository    = (*Repository)(nil)
	_ domain.LimitRepository       = (*Repository)(nil)
	_ categorymemory.Store         = (*MemoryStore)(nil)
)
