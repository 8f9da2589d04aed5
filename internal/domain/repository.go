package domain

import "context"

// TransactionRepository stores transactions.
type TransactionRepository interface {
	// InsertTransactions stores a batch of transactions.
	InsertTransactions(ctx context.Context, txs []*Transaction) error

	// ListTransactions returns a user's transactions ordered by date.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
}

// CategoryRepository stores per-user categories.
type CategoryRepository interface {
	// ListCategories returns the active categories of a user ordered by name.
	ListCategories(ctx context.Context, userID string) ([]Category, error)

	// InsertCategory adds a category.
	InsertCategory(ctx context.Context, cat Category) error
}
