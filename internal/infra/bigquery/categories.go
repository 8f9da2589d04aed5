package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/budget-bot/internal/domain"
)

type CategoryRow struct {
	CategoryID string `bigquery:"category_id"` // REQUIRED
	UserID     string `bigquery:"user_id"`     // REQUIRED
	Name       string `bigquery:"name"`        // REQUIRED

	IsActive bigquery.NullBool `bigquery:"is_active"` // NULLABLE, NULL means active

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func categoryFromRow(r CategoryRow) domain.Category {
	return domain.Category{
		ID:        r.CategoryID,
		UserID:    r.UserID,
		Name:      r.Name,
		CreatedAt: r.CreatedTS,
	}
}
