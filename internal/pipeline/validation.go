package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/txparse"
)

// maxFutureSkew is how far past "now" a receipt date may lie before it is
// treated as misread.
const maxFutureSkew = 24 * time.Hour

// TransactionValidator checks transactions read off a receipt.
type TransactionValidator struct {
	currencies map[string]bool
	now        time.Time
}

// NewTransactionValidator creates a validator accepting the table's currencies.
func NewTransactionValidator(table *txparse.CurrencyTable, now time.Time) *TransactionValidator {
	v := &TransactionValidator{
		currencies: make(map[string]bool),
		now:        now,
	}
	for _, code := range table.Codes() {
		v.currencies[code] = true
	}
	return v
}

// Validate returns nil if tx can be stored. A date in the future is reset to
// now rather than rejected.
func (v *TransactionValidator) Validate(tx *domain.Transaction) error {
	if !tx.Amount.IsPositive() {
		return fmt.Errorf("invalid amount %s: must be positive", tx.Amount)
	}
	if !v.currencies[tx.Currency] {
		return fmt.Errorf("invalid currency %q", tx.Currency)
	}
	if strings.TrimSpace(tx.Description) == "" {
		return fmt.Errorf("empty description")
	}
	if tx.Date.After(v.now.Add(maxFutureSkew)) {
		tx.Date = v.now
	}
	return nil
}
