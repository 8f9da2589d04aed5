package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/budget-bot/internal/categorymemory"
	"github.com/dvloznov/budget-bot/internal/txparse"
	yaml "gopkg.in/yaml.v2"
)

// Tuning is the YAML-configurable policy of the parser, matcher and
// categorization chain. Fields left out of the file keep their defaults.
type Tuning struct {
	DefaultCurrency  string              `yaml:"default_currency"`
	Currencies       map[string][]string `yaml:"currencies"`
	StopWords        []string            `yaml:"stop_words"`
	MinKeywordLength int                 `yaml:"min_keyword_length"`
	Matcher          MatcherTuning       `yaml:"matcher"`
	Categorize       CategorizeTuning    `yaml:"categorize"`
}

// MatcherTuning mirrors categorymemory.Params in file form.
type MatcherTuning struct {
	PatternWeight        float64 `yaml:"pattern_weight"`
	KeywordWeight        float64 `yaml:"keyword_weight"`
	PopularityDivisor    float64 `yaml:"popularity_divisor"`
	PopularityCap        float64 `yaml:"popularity_cap"`
	MinConfidence        float64 `yaml:"min_confidence"`
	AutoApplyThreshold   float64 `yaml:"auto_apply_threshold"`
	SimilarityThreshold  float64 `yaml:"similarity_threshold"`
	ExactIncrement       float64 `yaml:"exact_increment"`
	SimilarIncrement     float64 `yaml:"similar_increment"`
	RetentionDays        int     `yaml:"retention_days"`
	CleanupMaxConfidence float64 `yaml:"cleanup_max_confidence"`
	CleanupMaxUsage      int64   `yaml:"cleanup_max_usage"`
}

// CategorizeTuning controls the strategies around the matcher.
type CategorizeTuning struct {
	BayesMinSamples     int     `yaml:"bayes_min_samples"`
	BayesMinProbability float64 `yaml:"bayes_min_probability"`
	FallbackCategory    string  `yaml:"fallback_category"`
}

// DefaultTuning returns the built-in policy.
func DefaultTuning() Tuning {
	p := categorymemory.DefaultParams()
	return Tuning{
		DefaultCurrency:  "EUR",
		Currencies:       txparse.DefaultCurrencies(),
		StopWords:        append([]string(nil), p.StopWords...),
		MinKeywordLength: p.MinKeywordLen,
		Matcher: MatcherTuning{
			PatternWeight:        p.PatternWeight,
			KeywordWeight:        p.KeywordWeight,
			PopularityDivisor:    p.PopularityDivisor,
			PopularityCap:        p.PopularityCap,
			MinConfidence:        p.MinConfidence,
			AutoApplyThreshold:   p.AutoApplyThreshold,
			SimilarityThreshold:  p.SimilarityThreshold,
			ExactIncrement:       p.ExactIncrement,
			SimilarIncrement:     p.SimilarIncrement,
			RetentionDays:        int(p.RetentionWindow / (24 * time.Hour)),
			CleanupMaxConfidence: p.CleanupMaxConfidence,
			CleanupMaxUsage:      p.CleanupMaxUsage,
		},
		Categorize: CategorizeTuning{
			BayesMinSamples:     5,
			BayesMinProbability: 0.8,
			FallbackCategory:    "Прочее",
		},
	}
}

// LoadTuning reads a tuning file on top of the defaults. An empty path
// returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("LoadTuning: reading %s: %w", path, err)
	}
	if err := ParseTuning(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("LoadTuning: %s: %w", path, err)
	}
	return t, nil
}

// ParseTuning decodes YAML into t, keeping t's values for absent fields,
// and validates the result.
func ParseTuning(data []byte, t *Tuning) error {
	if err := yaml.UnmarshalStrict(data, t); err != nil {
		return fmt.Errorf("ParseTuning: decoding yaml: %w", err)
	}
	return t.Validate()
}

// Validate checks that the tuning is usable.
func (t Tuning) Validate() error {
	table := t.CurrencyTable()
	if _, ok := table.Lookup(t.DefaultCurrency); !ok {
		return fmt.Errorf("Tuning.Validate: default currency %q is not in the currency table", t.DefaultCurrency)
	}
	if err := t.MatcherParams().Validate(); err != nil {
		return fmt.Errorf("Tuning.Validate: %w", err)
	}
	if t.Categorize.BayesMinProbability < 0 || t.Categorize.BayesMinProbability > 1 {
		return fmt.Errorf("Tuning.Validate: bayes_min_probability must be within [0,1]")
	}
	if strings.TrimSpace(t.Categorize.FallbackCategory) == "" {
		return fmt.Errorf("Tuning.Validate: fallback_category is required")
	}
	return nil
}

// CurrencyTable builds the parser's currency table.
func (t Tuning) CurrencyTable() *txparse.CurrencyTable {
	return txparse.NewCurrencyTable(t.Currencies)
}

// Parser builds a transaction parser.
func (t Tuning) Parser() *txparse.Parser {
	return txparse.New(t.CurrencyTable(), t.DefaultCurrency)
}

// MatcherParams converts the file form into matcher parameters.
func (t Tuning) MatcherParams() categorymemory.Params {
	m := t.Matcher
	return categorymemory.Params{
		PatternWeight:        m.PatternWeight,
		KeywordWeight:        m.KeywordWeight,
		PopularityDivisor:    m.PopularityDivisor,
		PopularityCap:        m.PopularityCap,
		MinConfidence:        m.MinConfidence,
		AutoApplyThreshold:   m.AutoApplyThreshold,
		SimilarityThreshold:  m.SimilarityThreshold,
		ExactIncrement:       m.ExactIncrement,
		SimilarIncrement:     m.SimilarIncrement,
		RetentionWindow:      time.Duration(m.RetentionDays) * 24 * time.Hour,
		CleanupMaxConfidence: m.CleanupMaxConfidence,
		CleanupMaxUsage:      m.CleanupMaxUsage,
		MinKeywordLen:        t.MinKeywordLength,
		StopWords:            append([]string(nil), t.StopWords...),
	}
}

// Normalizer builds the pattern normalizer shared by the matcher and classifiers.
func (t Tuning) Normalizer() *categorymemory.Normalizer {
	return categorymemory.NewNormalizer(t.CurrencyTable().Synonyms(), t.StopWords, t.MinKeywordLength)
}
