package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyTotal sums one currency. Amounts in different currencies are
// never added together.
type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Balance  decimal.Decimal `json:"balance"`
	Count    int             `json:"count"`
}

// CategoryTotal sums one category in one currency.
type CategoryTotal struct {
	CategoryID   string          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name"`
	Currency     string          `json:"currency"`
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Count        int             `json:"count"`
}

// Summary is a user's totals over a date range.
type Summary struct {
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Currencies []CurrencyTotal `json:"currencies"`
	Categories []CategoryTotal `json:"categories"`
}

// Summary totals the user's transactions between from and to, per currency
// and per category. Uncategorised rows count under the fallback category.
func (s *Service) Summary(ctx context.Context, userID string, from, to time.Time) (*Summary, error) {
	txs, err := s.List(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}

	type catKey struct{ id, name, currency string }
	currencies := map[string]*CurrencyTotal{}
	categories := map[catKey]*CategoryTotal{}

	for _, tx := range txs {
		ct, ok := currencies[tx.Currency]
		if !ok {
			ct = &CurrencyTotal{Currency: tx.Currency}
			currencies[tx.Currency] = ct
		}

		name := tx.CategoryName
		if tx.CategoryID == "" || name == "" {
			name = s.fallback
		}
		key := catKey{tx.CategoryID, name, tx.Currency}
		cat, ok := categories[key]
		if !ok {
			cat = &CategoryTotal{CategoryID: tx.CategoryID, CategoryName: name, Currency: tx.Currency}
			categories[key] = cat
		}

		if tx.IsIncome {
			ct.Income = ct.Income.Add(tx.Amount)
			cat.Income = cat.Income.Add(tx.Amount)
		} else {
			ct.Expense = ct.Expense.Add(tx.Amount)
			cat.Expense = cat.Expense.Add(tx.Amount)
		}
		ct.Count++
		cat.Count++
	}

	out := &Summary{
		From:       from,
		To:         to,
		Currencies: make([]CurrencyTotal, 0, len(currencies)),
		Categories: make([]CategoryTotal, 0, len(categories)),
	}
	for _, ct := range currencies {
		ct.Balance = ct.Income.Sub(ct.Expense)
		out.Currencies = append(out.Currencies, *ct)
	}
	for _, cat := range categories {
		out.Categories = append(out.Categories, *cat)
	}

	sort.Slice(out.Currencies, func(i, j int) bool {
		return out.Currencies[i].Currency < out.Currencies[j].Currency
	})
	sort.Slice(out.Categories, func(i, j int) bool {
		a, b := out.Categories[i], out.Categories[j]
		if c := a.Expense.Cmp(b.Expense); c != 0 {
			return c > 0
		}
		if a.CategoryName != b.CategoryName {
			return a.CategoryName < b.CategoryName
		}
		return a.Currency < b.Currency
	})

	return out, nil
}
