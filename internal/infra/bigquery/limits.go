package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/shopspring/decimal"
)

type LimitRow struct {
	LimitID    string `bigquery:"limit_id"`    // REQUIRED
	UserID     string `bigquery:"user_id"`     // REQUIRED
	CategoryID string `bigquery:"category_id"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED
	Period   string   `bigquery:"period"`   // REQUIRED: daily, weekly or monthly

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func limitToRow(l domain.Limit) LimitRow {
	return LimitRow{
		LimitID:    l.ID,
		UserID:     l.UserID,
		CategoryID: l.CategoryID,
		Amount:     l.Amount.Rat(),
		Currency:   l.Currency,
		Period:     l.Period,
		CreatedTS:  l.CreatedAt,
	}
}

func limitFromRow(r LimitRow) (domain.Limit, error) {
	amount := decimal.Zero
	if r.Amount != nil {
		var err error
		amount, err = decimal.NewFromString(r.Amount.FloatString(numericScale))
		if err != nil {
			return domain.Limit{}, fmt.Errorf("limit %s: amount: %w", r.LimitID, err)
		}
	}
	return domain.Limit{
		ID:         r.LimitID,
		UserID:     r.UserID,
		CategoryID: r.CategoryID,
		Amount:     amount,
		Currency:   r.Currency,
		Period:     r.Period,
		CreatedAt:  r.CreatedTS,
	}, nil
}
