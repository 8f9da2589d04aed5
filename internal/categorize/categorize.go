// Package categorize picks a category for a transaction description by
// asking a chain of strategies in order, cheapest first.
package categorize

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Result sources.
const (
	SourceExact     = "exact"
	SourceSubstring = "substring"
	SourceKeywords  = "keywords"
	SourceMemory    = "memory"
	SourceBayes     = "bayes"
	SourceLLM       = "llm"
	SourceFallback  = "fallback"
)

// Category is one of the user's categories as seen by the strategies.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Request is a categorisation question for one user.
type Request struct {
	UserID      string
	Description string
	Categories  []Category
}

// Result is the category a strategy settled on.
type Result struct {
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Confidence   float64 `json:"confidence"`
	AutoApply    bool    `json:"auto_apply"`
	Source       string  `json:"source"`
}

// Strategy proposes a category or returns nil when it has no opinion.
type Strategy interface {
	Name() string
	Suggest(ctx context.Context, req Request) (*Result, error)
}

// Chain asks its strategies in order and returns the first answer.
type Chain struct {
	strategies []Strategy
	log        zerolog.Logger
}

// NewChain creates a chain over the given strategies.
func NewChain(log zerolog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		log:        log.With().Str("component", "categorize").Logger(),
	}
}

// Strategies returns the names of the strategies in order.
func (c *Chain) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Suggest returns the first non-nil result, or nil when no strategy answers.
// A failing strategy is logged and skipped; only context cancellation
// aborts the chain.
func (c *Chain) Suggest(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, nil
	}

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := s.Suggest(ctx, req)
		if err != nil {
			c.log.Warn().
				Err(err).
				Str("strategy", s.Name()).
				Str("user_id", req.UserID).
				Msg("Strategy failed, trying next")
			continue
		}
		if res == nil {
			continue
		}

		c.log.Debug().
			Str("strategy", s.Name()).
			Str("user_id", req.UserID).
			Str("category_id", res.CategoryID).
			Float64("confidence", res.Confidence).
			Msg("Category suggested")
		return res, nil
	}

	c.log.Debug().Str("user_id", req.UserID).Msg("No strategy suggested a category")
	return nil, nil
}

// FallbackConfidence is the confidence of a fallback result.
const FallbackConfidence = 0.5

// Fallback returns the category named name from categories, or nil when the
// user has no such category.
func Fallback(categories []Category, name string) *Result {
	cat, ok := findByName(categories, name)
	if !ok {
		return nil
	}
	return &Result{
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Confidence:   FallbackConfidence,
		Source:       SourceFallback,
	}
}

func findByName(categories []Category, name string) (Category, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Category{}, false
	}
	for _, c := range categories {
		if strings.ToLower(strings.TrimSpace(c.Name)) == name {
			return c, true
		}
	}
	return Category{}, false
}

func findByID(categories []Category, id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}
