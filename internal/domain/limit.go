package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Limit periods.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// Limit caps a user's spending in one category and currency per period.
type Limit struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	CategoryID string          `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Period     string          `json:"period"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ValidPeriod reports whether p is a known limit period.
func ValidPeriod(p string) bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// PeriodStart returns the UTC start of the period containing t. Weeks
// start on Monday; unknown periods are treated as monthly.
func PeriodStart(period string, t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch period {
	case PeriodDaily:
		return day
	case PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// LimitRepository stores per-category spending limits.
type LimitRepository interface {
	// ListLimits returns a user's limits.
	ListLimits(ctx context.Context, userID string) ([]Limit, error)

	// InsertLimit adds a limit.
	InsertLimit(ctx context.Context, limit Limit) error

	// DeleteLimit removes one of the user's limits and reports whether it existed.
	DeleteLimit(ctx context.Context, userID, limitID string) (bool, error)
}
