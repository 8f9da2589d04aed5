package bigquery

import (
	"time"

	"github.com/dvloznov/budget-bot/internal/categorymemory"
)

type CategoryMemoryRow struct {
	RecordID   string    `bigquery:"record_id"`           // REQUIRED
	UserID     string    `bigquery:"user_id"`             // REQUIRED
	Pattern    string    `bigquery:"description_pattern"` // REQUIRED, normalized
	CategoryID string    `bigquery:"category_id"`         // REQUIRED
	Confidence float64   `bigquery:"confidence"`          // REQUIRED, 0..1
	UsageCount int64     `bigquery:"usage_count"`         // REQUIRED
	LastUsed   time.Time `bigquery:"last_used"`           // REQUIRED
	CreatedTS  time.Time `bigquery:"created_ts"`          // REQUIRED
}

func memoryRowFromRecord(rec categorymemory.Record) CategoryMemoryRow {
	return CategoryMemoryRow{
		RecordID:   rec.ID,
		UserID:     rec.UserID,
		Pattern:    rec.Pattern,
		CategoryID: rec.CategoryID,
		Confidence: rec.Confidence,
		UsageCount: rec.UsageCount,
		LastUsed:   rec.LastUsed,
		CreatedTS:  rec.CreatedAt,
	}
}

func (r CategoryMemoryRow) record() categorymemory.Record {
	return categorymemory.Record{
		ID:         r.RecordID,
		UserID:     r.UserID,
		Pattern:    r.Pattern,
		CategoryID: r.CategoryID,
		Confidence: r.Confidence,
		UsageCount: r.UsageCount,
		LastUsed:   r.LastUsed,
		CreatedAt:  r.CreatedTS,
	}
}
