package categorize

import (
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/categorymemory"
)

// Options selects the strategies of a default chain. Nil collaborators leave
// their strategy out.
type Options struct {
	Memory   Suggester
	Patterns PatternSource
	LLM      Categorizer

	Normalizer          *categorymemory.Normalizer
	BayesMinSamples     int
	BayesMinProbability float64
}

// NewDefaultChain builds exact, substring, keywords, memory, bayes and LLM
// strategies in that order.
func NewDefaultChain(opts Options, log zerolog.Logger) *Chain {
	strategies := []Strategy{Exact{}, Substring{}, NewKeywords()}
	if opts.Memory != nil {
		strategies = append(strategies, &Memory{Matcher: opts.Memory})
	}
	if opts.Patterns != nil {
		strategies = append(strategies, &Bayes{
			Source:         opts.Patterns,
			Normalizer:     opts.Normalizer,
			MinSamples:     opts.BayesMinSamples,
			MinProbability: opts.BayesMinProbability,
		})
	}
	if opts.LLM != nil {
		strategies = append(strategies, &LLM{Model: opts.LLM})
	}
	return NewChain(log, strategies...)
}
