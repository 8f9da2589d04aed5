package categorymemory

import (
	"fmt"
	"time"
)

// Params holds the matcher's tunables. The defaults are empirical.
type Params struct {
	PatternWeight     float64
	KeywordWeight     float64
	PopularityDivisor float64
	PopularityCap     float64

	MinConfidence       float64
	AutoApplyThreshold  float64
	SimilarityThreshold float64

	ExactIncrement   float64
	SimilarIncrement float64

	RetentionWindow      time.Duration
	CleanupMaxConfidence float64
	CleanupMaxUsage      int64

	MinKeywordLen int
	StopWords     []string
}

// DefaultStopWords are Russian prepositions and conjunctions.
var DefaultStopWords = []string{
	"в", "на", "по", "для", "из", "с", "и", "или", "но", "к", "от", "до", "за", "при", "под",
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		PatternWeight:        0.6,
		KeywordWeight:        0.4,
		PopularityDivisor:    10,
		PopularityCap:        0.2,
		MinConfidence:        0.7,
		AutoApplyThreshold:   0.9,
		SimilarityThreshold:  0.8,
		ExactIncrement:       0.1,
		SimilarIncrement:     0.05,
		RetentionWindow:      90 * 24 * time.Hour,
		CleanupMaxConfidence: 0.5,
		CleanupMaxUsage:      3,
		MinKeywordLen:        3,
		StopWords:            append([]string(nil), DefaultStopWords...),
	}
}

// Validate rejects tunings that would break scoring.
func (p Params) Validate() error {
	if p.PatternWeight < 0 || p.KeywordWeight < 0 {
		return fmt.Errorf("Params.Validate: weights must be non-negative")
	}
	if p.PopularityDivisor <= 0 {
		return fmt.Errorf("Params.Validate: popularity divisor must be positive, got %v", p.PopularityDivisor)
	}
	if p.PopularityCap < 0 {
		return fmt.Errorf("Params.Validate: popularity cap must be non-negative")
	}
	for name, v := range map[string]float64{
		"min confidence":       p.MinConfidence,
		"similarity threshold": p.SimilarityThreshold,
		"exact increment":      p.ExactIncrement,
		"similar increment":    p.SimilarIncrement,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("Params.Validate: %s must be within [0,1], got %v", name, v)
		}
	}
	if p.AutoApplyThreshold < p.MinConfidence {
		return fmt.Errorf("Params.Validate: auto-apply threshold %v below min confidence %v", p.AutoApplyThreshold, p.MinConfidence)
	}
	if p.RetentionWindow <= 0 {
		return fmt.Errorf("Params.Validate: retention window must be positive")
	}
	if p.MinKeywordLen < 1 {
		return fmt.Errorf("Params.Validate: min keyword length must be at least 1")
	}
	return nil
}
