package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTransaction_SignedAmount(t *testing.T) {
	tests := []struct {
		name     string
		isIncome bool
		want     string
	}{
		{"expense is negative", false, "-12.5"},
		{"income is positive", true, "12.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Amount: decimal.RequireFromString("12.5"), IsIncome: tt.isIncome}
			if got := tx.SignedAmount(); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("SignedAmount() = %s, want %s", got, tt.want)
			}
		})
	}
}
