package categorymemory

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dvloznov/budget-bot/internal/txparse"
)

// Normalizer reduces descriptions to the pattern form used for matching:
// lowercase, no punctuation, no standalone numbers or currency words, single spaces.
type Normalizer struct {
	currencyWords map[string]struct{}
	stopWords     map[string]struct{}
	minKeywordLen int
}

// NewNormalizer builds a normalizer. currencyWords are dropped from patterns;
// stopWords and tokens shorter than minKeywordLen runes are dropped from keywords.
func NewNormalizer(currencyWords, stopWords []string, minKeywordLen int) *Normalizer {
	n := &Normalizer{
		currencyWords: make(map[string]struct{}, len(currencyWords)),
		stopWords:     make(map[string]struct{}, len(stopWords)),
		minKeywordLen: minKeywordLen,
	}
	for _, w := range currencyWords {
		// symbols disappear with punctuation anyway
		if w = stripPunct(strings.ToLower(w)); w != "" {
			n.currencyWords[w] = struct{}{}
		}
	}
	for _, w := range stopWords {
		n.stopWords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return n
}

// DefaultNormalizer uses the default currency table and stop words.
func DefaultNormalizer() *Normalizer {
	p := DefaultParams()
	return NewNormalizer(txparse.DefaultCurrencyTable().Synonyms(), p.StopWords, p.MinKeywordLen)
}

// Normalize returns the pattern form of s. Normalize(Normalize(s)) == Normalize(s).
func (n *Normalizer) Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	tokens := strings.Fields(s)
	kept := tokens[:0]
	for _, tok := range tokens {
		tok = stripPunct(tok)
		if tok == "" || isNumeric(tok) {
			continue
		}
		if _, ok := n.currencyWords[tok]; ok {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// Keywords returns the significant tokens of an already normalized pattern.
// Duplicates are kept so repeated words weigh more.
func (n *Normalizer) Keywords(pattern string) []string {
	var out []string
	for _, tok := range strings.Fields(pattern) {
		if utf8.RuneCountInString(tok) < n.minKeywordLen {
			continue
		}
		if _, stop := n.stopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func stripPunct(tok string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return -1
	}, tok)
}

func isNumeric(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return tok != ""
}
