package categorize

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-bot/internal/categorymemory"
	"github.com/jbrukh/bayesian"
)

// PatternSource lists a user's memory records.
type PatternSource interface {
	Patterns(ctx context.Context, userID string) ([]categorymemory.Record, error)
}

// Bayes trains a naive Bayes classifier on the user's memory records and
// answers when one category clearly dominates.
type Bayes struct {
	Source     PatternSource
	Normalizer *categorymemory.Normalizer
	// MinSamples is the number of records needed before the classifier is used.
	MinSamples int
	// MinProbability is the posterior required to answer.
	MinProbability float64
}

func (b *Bayes) Name() string { return SourceBayes }

func (b *Bayes) Suggest(ctx context.Context, req Request) (*Result, error) {
	norm := b.Normalizer
	if norm == nil {
		norm = categorymemory.DefaultNormalizer()
	}

	terms := norm.Keywords(norm.Normalize(req.Description))
	if len(terms) == 0 {
		return nil, nil
	}

	records, err := b.Source.Patterns(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("Bayes: loading patterns: %w", err)
	}
	if len(records) < b.MinSamples {
		return nil, nil
	}

	classes := make([]bayesian.Class, 0, 10)
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.CategoryID] {
			seen[r.CategoryID] = true
			classes = append(classes, bayesian.Class(r.CategoryID))
		}
	}
	// the classifier needs at least two distinct classes
	if len(classes) < 2 {
		return nil, nil
	}

	cl := bayesian.NewClassifier(classes...)
	vocabulary := make(map[string]bool)
	for _, r := range records {
		words := norm.Keywords(r.Pattern)
		if len(words) == 0 {
			continue
		}
		cl.Learn(words, bayesian.Class(r.CategoryID))
		for _, w := range words {
			vocabulary[w] = true
		}
	}

	// without a single known word the posterior is just the class prior
	known := false
	for _, t := range terms {
		if vocabulary[t] {
			known = true
			break
		}
	}
	if !known {
		return nil, nil
	}

	scores, inx, strict := cl.ProbScores(terms)
	if !strict || scores[inx] < b.MinProbability {
		return nil, nil
	}

	categoryID := string(classes[inx])
	res := &Result{
		CategoryID: categoryID,
		Confidence: scores[inx],
		Source:     SourceBayes,
	}
	if len(req.Categories) > 0 {
		cat, ok := findByID(req.Categories, categoryID)
		if !ok {
			return nil, nil
		}
		res.CategoryName = cat.Name
	}
	return res, nil
}
