package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-bot/internal/domain"
)

var (
	// ErrLimitsDisabled is returned when the service has no limit store.
	ErrLimitsDisabled = errors.New("ledger: spending limits are not configured")
	// ErrInvalidLimit is returned for a limit without a positive amount and
	// known currency, or with an unknown period.
	ErrInvalidLimit = errors.New("ledger: invalid limit, expected e.g. '300 евро' and a daily, weekly or monthly period")
	// ErrLimitExists is returned when the category already has a limit.
	ErrLimitExists = errors.New("ledger: category already has a limit")
	// ErrLimitNotFound is returned when deleting a limit the user does not have.
	ErrLimitNotFound = errors.New("ledger: limit not found")
)

// Limit states.
const (
	LimitOK       = "ok"
	LimitWarning  = "warning"
	LimitExceeded = "exceeded"
)

// warnShare is the share of a limit above which spending is flagged.
var warnShare = decimal.NewFromFloat(0.8)

// LimitStatus is a limit and the spending counted against it in the current period.
type LimitStatus struct {
	Limit        domain.Limit    `json:"limit"`
	CategoryName string          `json:"category_name"`
	PeriodStart  time.Time       `json:"period_start"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	Percent      float64         `json:"percent"`
	State        string          `json:"state"`
}

// WithLimits enables spending limits backed by repo.
func (s *Service) WithLimits(repo domain.LimitRepository) *Service {
	s.limits = repo
	return s
}

// SetLimit parses text such as "300 евро" and caps the user's spending in a
// category. An empty period means monthly. A category holds one limit.
func (s *Service) SetLimit(ctx context.Context, userID, categoryID, text, period string) (*LimitStatus, error) {
	if s.limits == nil {
		return nil, ErrLimitsDisabled
	}
	if userID == "" {
		return nil, ErrMissingUser
	}

	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = domain.PeriodMonthly
	}
	if !domain.ValidPeriod(period) {
		return nil, fmt.Errorf("SetLimit: %w: period %q", ErrInvalidLimit, period)
	}
	amount, currency, ok := s.parser.ParseAmount(text)
	if !ok {
		return nil, fmt.Errorf("SetLimit: %w: %q", ErrInvalidLimit, text)
	}

	names, err := s.categoryNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("SetLimit: %w", err)
	}
	if _, known := names[categoryID]; !known {
		return nil, fmt.Errorf("SetLimit: %w: %s", ErrUnknownCategory, categoryID)
	}

	existing, err := s.limits.ListLimits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("SetLimit: listing limits: %w", err)
	}
	for _, l := range existing {
		if l.CategoryID == categoryID {
			return nil, fmt.Errorf("SetLimit: %w: %s", ErrLimitExists, names[categoryID])
		}
	}

	limit := domain.Limit{
		ID:         uuid.New().String(),
		UserID:     userID,
		CategoryID: categoryID,
		Amount:     amount,
		Currency:   currency,
		Period:     period,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.limits.InsertLimit(ctx, limit); err != nil {
		return nil, fmt.Errorf("SetLimit: storing limit: %w", err)
	}

	statuses, err := s.statuses(ctx, []domain.Limit{limit}, names, "")
	if err != nil {
		return nil, fmt.Errorf("SetLimit: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("limit_id", limit.ID).
		Str("category_id", categoryID).
		Str("amount", amount.String()).
		Str("currency", currency).
		Str("period", period).
		Msg("Limit set")

	return &statuses[0], nil
}

// Limits returns the user's limits with spending in their current periods.
func (s *Service) Limits(ctx context.Context, userID string) ([]LimitStatus, error) {
	if s.limits == nil {
		return nil, ErrLimitsDisabled
	}
	if userID == "" {
		return nil, ErrMissingUser
	}

	limits, err := s.limits.ListLimits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Limits: %w", err)
	}
	if len(limits) == 0 {
		return nil, nil
	}

	names, err := s.categoryNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Limits: %w", err)
	}

	statuses, err := s.statuses(ctx, limits, names, "")
	if err != nil {
		return nil, fmt.Errorf("Limits: %w", err)
	}
	return statuses, nil
}

// DeleteLimit removes one of the user's limits.
func (s *Service) DeleteLimit(ctx context.Context, userID, limitID string) error {
	if s.limits == nil {
		return ErrLimitsDisabled
	}
	if userID == "" {
		return ErrMissingUser
	}

	found, err := s.limits.DeleteLimit(ctx, userID, limitID)
	if err != nil {
		return fmt.Errorf("DeleteLimit: %w", err)
	}
	if !found {
		return fmt.Errorf("DeleteLimit: %w: %s", ErrLimitNotFound, limitID)
	}

	s.log.Info().Str("user_id", userID).Str("limit_id", limitID).Msg("Limit deleted")
	return nil
}

// checkLimits returns the limits on tx's category and currency that are in
// warning or exceeded state once tx is counted.
func (s *Service) checkLimits(ctx context.Context, tx *domain.Transaction) ([]LimitStatus, error) {
	limits, err := s.limits.ListLimits(ctx, tx.UserID)
	if err != nil {
		return nil, fmt.Errorf("checkLimits: %w", err)
	}

	var matching []domain.Limit
	for _, l := range limits {
		if l.CategoryID == tx.CategoryID && l.Currency == tx.Currency {
			matching = append(matching, l)
		}
	}
	if len(matching) == 0 {
		return nil, nil
	}

	statuses, err := s.statuses(ctx, matching, map[string]string{tx.CategoryID: tx.CategoryName}, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("checkLimits: %w", err)
	}

	var flagged []LimitStatus
	for _, st := range statuses {
		// the stored row may not be visible to the query yet
		st.Spent = st.Spent.Add(tx.Amount)
		st = st.evaluate()
		if st.State != LimitOK {
			flagged = append(flagged, st)
		}
	}
	return flagged, nil
}

// statuses counts expenses against each limit since its period start,
// leaving out the transaction excludeID.
func (s *Service) statuses(ctx context.Context, limits []domain.Limit, names map[string]string, excludeID string) ([]LimitStatus, error) {
	now := s.now()
	earliest := now
	for _, l := range limits {
		if start := domain.PeriodStart(l.Period, now); start.Before(earliest) {
			earliest = start
		}
	}

	txs, err := s.transactions.ListTransactions(ctx, domain.TransactionFilter{UserID: limits[0].UserID, From: earliest})
	if err != nil {
		return nil, fmt.Errorf("counting spending: %w", err)
	}

	out := make([]LimitStatus, 0, len(limits))
	for _, l := range limits {
		st := LimitStatus{
			Limit:        l,
			CategoryName: names[l.CategoryID],
			PeriodStart:  domain.PeriodStart(l.Period, now),
			Spent:        decimal.Zero,
		}
		for _, tx := range txs {
			if tx.ID == excludeID || tx.IsIncome || tx.CategoryID != l.CategoryID || tx.Currency != l.Currency {
				continue
			}
			if tx.Date.Before(st.PeriodStart) {
				continue
			}
			st.Spent = st.Spent.Add(tx.Amount)
		}
		out = append(out, st.evaluate())
	}
	return out, nil
}

func (st LimitStatus) evaluate() LimitStatus {
	st.Remaining = st.Limit.Amount.Sub(st.Spent)
	if st.Limit.Amount.IsPositive() {
		st.Percent = st.Spent.Div(st.Limit.Amount).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
	}
	switch {
	case st.Spent.GreaterThan(st.Limit.Amount):
		st.State = LimitExceeded
	case st.Spent.GreaterThan(st.Limit.Amount.Mul(warnShare)):
		st.State = LimitWarning
	default:
		st.State = LimitOK
	}
	return st
}

func (s *Service) categoryNames(ctx context.Context, userID string) (map[string]string, error) {
	cats, err := s.Categories(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}
