package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Where a transaction came from.
const (
	SourceText    = "text"
	SourceReceipt = "receipt"
)

// Transaction is one recorded income or expense of a user.
// Amount is always positive; IsIncome carries the direction.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	IsIncome    bool            `json:"is_income"`
	Description string          `json:"description"`

	CategoryID         string  `json:"category_id,omitempty"`
	CategoryName       string  `json:"category_name,omitempty"`
	CategoryConfidence float64 `json:"category_confidence,omitempty"`
	CategorySource     string  `json:"category_source,omitempty"`

	Source     string    `json:"source"`
	ReceiptURI string    `json:"receipt_uri,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SignedAmount returns the amount negated for expenses.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.IsIncome {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Category is a user's spending or income category.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultCategoryNames are created for a user who has no categories yet.
var DefaultCategoryNames = []string{
	"Продукты",
	"Транспорт",
	"Развлечения",
	"Здоровье",
	"Одежда",
	"Коммунальные услуги",
	"Ресторан",
	"Зарплата",
	"Прочее",
}

// TransactionFilter selects a user's transactions in [From, To].
// Zero bounds are open.
type TransactionFilter struct {
	UserID string
	From   time.Time
	To     time.Time
}
