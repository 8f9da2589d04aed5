package categorize

import (
	"context"
	"fmt"
	"strings"
)

// Categorizer asks a language model to pick one of the given category names.
type Categorizer interface {
	CategorizeTransaction(ctx context.Context, description string, categoryNames []string) (string, error)
}

// LLMConfidence is the confidence attached to a model answer.
const LLMConfidence = 0.6

// LLM asks a model. Answers that are not one of the user's categories are
// discarded.
type LLM struct {
	Model Categorizer
}

func (l *LLM) Name() string { return SourceLLM }

func (l *LLM) Suggest(ctx context.Context, req Request) (*Result, error) {
	if len(req.Categories) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(req.Categories))
	for _, c := range req.Categories {
		names = append(names, c.Name)
	}

	answer, err := l.Model.CategorizeTransaction(ctx, req.Description, names)
	if err != nil {
		return nil, fmt.Errorf("LLM: %w", err)
	}

	answer = strings.Trim(strings.TrimSpace(answer), `"'.`)
	cat, ok := findByName(req.Categories, answer)
	if !ok {
		return nil, nil
	}
	return &Result{
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Confidence:   LLMConfidence,
		Source:       SourceLLM,
	}, nil
}
