package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/shopspring/decimal"
)

// numericScale is the fractional precision of a BigQuery NUMERIC.
const numericScale = 9

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC, always positive
	Currency string   `bigquery:"currency"` // REQUIRED STRING
	IsIncome bool     `bigquery:"is_income"`

	Description string `bigquery:"description"` // REQUIRED STRING

	CategoryID         bigquery.NullString  `bigquery:"category_id"`         // NULLABLE
	CategoryName       bigquery.NullString  `bigquery:"category_name"`       // NULLABLE
	CategoryConfidence bigquery.NullFloat64 `bigquery:"category_confidence"` // NULLABLE
	CategorySource     bigquery.NullString  `bigquery:"category_source"`     // NULLABLE

	Source     string              `bigquery:"source"`      // REQUIRED: text or receipt
	ReceiptURI bigquery.NullString `bigquery:"receipt_uri"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func transactionToRow(tx *domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		TransactionDate: civil.DateOf(tx.Date),
		Amount:          tx.Amount.Rat(),
		Currency:        tx.Currency,
		IsIncome:        tx.IsIncome,
		Description:     tx.Description,
		CategoryID:      nullString(tx.CategoryID),
		CategoryName:    nullString(tx.CategoryName),
		CategorySource:  nullString(tx.CategorySource),
		Source:          tx.Source,
		ReceiptURI:      nullString(tx.ReceiptURI),
		CreatedTS:       tx.CreatedAt,
	}
	if tx.CategoryID != "" {
		row.CategoryConfidence = bigquery.NullFloat64{Float64: tx.CategoryConfidence, Valid: true}
	}
	return row
}

func transactionFromRow(r *TransactionRow) (*domain.Transaction, error) {
	amount := decimal.Zero
	if r.Amount != nil {
		var err error
		amount, err = decimal.NewFromString(r.Amount.FloatString(numericScale))
		if err != nil {
			return nil, fmt.Errorf("transaction %s: amount: %w", r.TransactionID, err)
		}
	}

	return &domain.Transaction{
		ID:                 r.TransactionID,
		UserID:             r.UserID,
		Date:               r.TransactionDate.In(time.UTC),
		Amount:             amount,
		Currency:           r.Currency,
		IsIncome:           r.IsIncome,
		Description:        r.Description,
		CategoryID:         r.CategoryID.StringVal,
		CategoryName:       r.CategoryName.StringVal,
		CategoryConfidence: r.CategoryConfidence.Float64,
		CategorySource:     r.CategorySource.StringVal,
		Source:             r.Source,
		ReceiptURI:         r.ReceiptURI.StringVal,
		CreatedAt:          r.CreatedTS,
	}, nil
}
