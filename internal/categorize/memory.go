package categorize

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-bot/internal/categorymemory"
)

// Suggester is the part of categorymemory.Matcher the Memory strategy uses.
type Suggester interface {
	Suggest(ctx context.Context, userID, description string) (*categorymemory.Suggestion, error)
}

// Memory answers from the user's remembered choices.
type Memory struct {
	Matcher Suggester
}

func (m *Memory) Name() string { return SourceMemory }

func (m *Memory) Suggest(ctx context.Context, req Request) (*Result, error) {
	s, err := m.Matcher.Suggest(ctx, req.UserID, req.Description)
	if err != nil {
		return nil, fmt.Errorf("Memory: %w", err)
	}
	if s == nil {
		return nil, nil
	}

	res := &Result{
		CategoryID: s.CategoryID,
		Confidence: s.Confidence,
		AutoApply:  s.AutoApply,
		Source:     SourceMemory,
	}
	if len(req.Categories) > 0 {
		cat, ok := findByID(req.Categories, s.CategoryID)
		if !ok {
			// remembered category no longer exists
			return nil, nil
		}
		res.CategoryName = cat.Name
	}
	return res, nil
}
