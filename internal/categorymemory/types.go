// Package categorymemory remembers which category a user picked for a
// description and suggests it again for similar descriptions later.
package categorymemory

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRecord is returned by Remember when the user or category is missing.
var ErrInvalidRecord = errors.New("categorymemory: user id and category id are required")

// Record is one remembered (pattern -> category) observation of a user.
type Record struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Pattern    string    `json:"pattern"`
	CategoryID string    `json:"category_id"`
	Confidence float64   `json:"confidence"`
	UsageCount int64     `json:"usage_count"`
	LastUsed   time.Time `json:"last_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// Suggestion is the best remembered category for a description.
type Suggestion struct {
	CategoryID string `json:"category_id"`
	// Confidence is Score capped at 1.
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
	AutoApply  bool    `json:"auto_apply"`
	Pattern    string  `json:"pattern"`
	RecordID   string  `json:"record_id"`
}

// StaleFilter selects records for cleanup. All conditions must hold.
type StaleFilter struct {
	// UserID limits cleanup to one user; empty means every user.
	UserID string
	// LastUsedBefore is the retention cut-off.
	LastUsedBefore time.Time
	// MaxConfidence and MaxUsage are exclusive upper bounds.
	MaxConfidence float64
	MaxUsage      int64
}

// Matches reports whether r is eligible for deletion under f.
func (f StaleFilter) Matches(r Record) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	return r.LastUsed.Before(f.LastUsedBefore) &&
		r.Confidence < f.MaxConfidence &&
		r.UsageCount < f.MaxUsage
}

// Store persists records. Every read and write is scoped to one user.
type Store interface {
	// ListByUser returns all records of a user.
	ListByUser(ctx context.Context, userID string) ([]Record, error)

	// Insert adds a new record.
	Insert(ctx context.Context, rec Record) error

	// Update overwrites usage, confidence and last use of an existing record.
	Update(ctx context.Context, rec Record) error

	// DeleteStale removes records matching the filter and returns how many were removed.
	DeleteStale(ctx context.Context, filter StaleFilter) (int64, error)
}
