package domain

import (
	"testing"
	"time"
)

func TestPeriodStart(t *testing.T) {
	// Thursday
	at := time.Date(2024, 5, 16, 18, 45, 0, 0, time.UTC)

	tests := []struct {
		period string
		want   time.Time
	}{
		{PeriodDaily, time.Date(2024, 5, 16, 0, 0, 0, 0, time.UTC)},
		{PeriodWeekly, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)},
		{PeriodMonthly, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"yearly", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			if got := PeriodStart(tt.period, at); !got.Equal(tt.want) {
				t.Errorf("PeriodStart(%s) = %v, want %v", tt.period, got, tt.want)
			}
		})
	}

	sunday := time.Date(2024, 5, 19, 23, 0, 0, 0, time.UTC)
	if got := PeriodStart(PeriodWeekly, sunday); !got.Equal(time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Sunday belongs to the week starting Monday, got %v", got)
	}
}

func TestValidPeriod(t *testing.T) {
	for _, p := range []string{PeriodDaily, PeriodWeekly, PeriodMonthly} {
		if !ValidPeriod(p) {
			t.Errorf("ValidPeriod(%q) = false", p)
		}
	}
	if ValidPeriod("") || ValidPeriod("yearly") {
		t.Error("unexpected valid period")
	}
}
