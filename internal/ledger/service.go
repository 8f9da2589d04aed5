// Package ledger records transactions typed by users: it parses the text,
// picks a category and stores the result.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/categorize"
	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/txparse"
)

var (
	// ErrUnparseable is returned when text is not a transaction.
	ErrUnparseable = errors.New("ledger: text is not a transaction, expected e.g. '35 евро продукты' or '+2000 зарплата'")
	// ErrUnknownCategory is returned when a category does not belong to the user.
	ErrUnknownCategory = errors.New("ledger: unknown category")
	// ErrMissingUser is returned when no user id is given.
	ErrMissingUser = errors.New("ledger: user id is required")
)

// Suggester picks a category for a description.
type Suggester interface {
	Suggest(ctx context.Context, req categorize.Request) (*categorize.Result, error)
}

// Rememberer records a user's category choice.
type Rememberer interface {
	Remember(ctx context.Context, userID, description, categoryID string, confidence float64) error
}

// Recorded is a stored transaction and the suggestion that categorised it.
type Recorded struct {
	Transaction *domain.Transaction `json:"transaction"`
	Suggestion  *categorize.Result  `json:"suggestion,omitempty"`
	Warnings    []LimitStatus       `json:"limit_warnings,omitempty"`
}

// Service ties parsing, categorisation and storage together.
type Service struct {
	parser       *txparse.Parser
	suggester    Suggester
	memory       Rememberer
	transactions domain.TransactionRepository
	categories   domain.CategoryRepository
	limits       domain.LimitRepository
	fallback     string
	log          zerolog.Logger
	now          func() time.Time
}

// NewService creates a Service. fallback names the category used when no
// strategy answers.
func NewService(
	parser *txparse.Parser,
	suggester Suggester,
	memory Rememberer,
	transactions domain.TransactionRepository,
	categories domain.CategoryRepository,
	fallback string,
	log zerolog.Logger,
) *Service {
	return &Service{
		parser:       parser,
		suggester:    suggester,
		memory:       memory,
		transactions: transactions,
		categories:   categories,
		fallback:     fallback,
		log:          log.With().Str("component", "ledger").Logger(),
		now:          time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Parse parses text without storing anything.
func (s *Service) Parse(text string) (txparse.ParsedTransaction, error) {
	parsed, ok := s.parser.Parse(text)
	if !ok {
		return txparse.ParsedTransaction{}, ErrUnparseable
	}
	return parsed, nil
}

// Categories returns the user's categories, creating the default set for a
// user who has none.
func (s *Service) Categories(ctx context.Context, userID string) ([]categorize.Category, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	cats, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Categories: listing: %w", err)
	}

	if len(cats) == 0 {
		now := s.now().UTC()
		for _, name := range domain.DefaultCategoryNames {
			cat := domain.Category{ID: uuid.New().String(), UserID: userID, Name: name, CreatedAt: now}
			if err := s.categories.InsertCategory(ctx, cat); err != nil {
				return nil, fmt.Errorf("Categories: creating default %q: %w", name, err)
			}
			cats = append(cats, cat)
		}
		s.log.Info().Str("user_id", userID).Int("count", len(cats)).Msg("Created default categories")
	}

	out := make([]categorize.Category, 0, len(cats))
	for _, c := range cats {
		out = append(out, categorize.Category{ID: c.ID, Name: c.Name})
	}
	return out, nil
}

// Categorize runs the suggestion chain for a description and falls back to
// the configured default category.
func (s *Service) Categorize(ctx context.Context, userID, description string) (*categorize.Result, error) {
	cats, err := s.Categories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Categorize: %w", err)
	}

	res, err := s.suggester.Suggest(ctx, categorize.Request{
		UserID:      userID,
		Description: description,
		Categories:  cats,
	})
	if err != nil {
		return nil, fmt.Errorf("Categorize: %w", err)
	}
	if res == nil {
		res = categorize.Fallback(cats, s.fallback)
	}
	return res, nil
}

// Record parses text, categorises and stores it. Auto-applied categories
// reinforce the user's memory.
func (s *Service) Record(ctx context.Context, userID, text string) (*Recorded, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	parsed, err := s.Parse(text)
	if err != nil {
		return nil, err
	}

	res, err := s.Categorize(ctx, userID, parsed.Description)
	if err != nil {
		return nil, fmt.Errorf("Record: %w", err)
	}

	now := s.now().UTC()
	tx := &domain.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Date:        now,
		Amount:      parsed.Amount,
		Currency:    parsed.Currency,
		IsIncome:    parsed.IsIncome,
		Description: parsed.Description,
		Source:      domain.SourceText,
		CreatedAt:   now,
	}
	ApplyCategory(tx, res)

	if err := s.transactions.InsertTransactions(ctx, []*domain.Transaction{tx}); err != nil {
		return nil, fmt.Errorf("Record: storing transaction: %w", err)
	}

	if res != nil && res.AutoApply {
		if err := s.memory.Remember(ctx, userID, tx.Description, res.CategoryID, res.Confidence); err != nil {
			// the transaction is stored; memory is best effort
			s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to reinforce category memory")
		}
	}

	rec := &Recorded{Transaction: tx, Suggestion: res}
	if s.limits != nil && !tx.IsIncome && tx.CategoryID != "" {
		warnings, err := s.checkLimits(ctx, tx)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to check spending limits")
		}
		rec.Warnings = warnings
	}

	s.log.Info().
		Str("user_id", userID).
		Str("transaction_id", tx.ID).
		Str("amount", tx.Amount.String()).
		Str("currency", tx.Currency).
		Str("category_id", tx.CategoryID).
		Int("limit_warnings", len(rec.Warnings)).
		Msg("Transaction recorded")

	return rec, nil
}

// Confirm stores the user's explicit category choice for a description.
func (s *Service) Confirm(ctx context.Context, userID, description, categoryID string) error {
	cats, err := s.Categories(ctx, userID)
	if err != nil {
		return fmt.Errorf("Confirm: %w", err)
	}

	known := false
	for _, c := range cats {
		if c.ID == categoryID {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("Confirm: %w: %s", ErrUnknownCategory, categoryID)
	}

	if err := s.memory.Remember(ctx, userID, description, categoryID, 1.0); err != nil {
		return fmt.Errorf("Confirm: %w", err)
	}
	return nil
}

// List returns the user's transactions between from and to, inclusive.
// Zero bounds are open.
func (s *Service) List(ctx context.Context, userID string, from, to time.Time) ([]*domain.Transaction, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("List: range end %s is before start %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}

	txs, err := s.transactions.ListTransactions(ctx, domain.TransactionFilter{UserID: userID, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return txs, nil
}

// ApplyCategory copies a categorisation result onto a transaction.
func ApplyCategory(tx *domain.Transaction, res *categorize.Result) {
	if res == nil {
		return
	}
	tx.CategoryID = res.CategoryID
	tx.CategoryName = res.CategoryName
	tx.CategoryConfidence = res.Confidence
	tx.CategorySource = res.Source
}
