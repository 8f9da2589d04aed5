package txparse

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// CurrencyTable maps free-form currency tokens (words, abbreviations, symbols)
// to canonical ISO codes. Lookups are case-insensitive.
type CurrencyTable struct {
	codes    []string
	synonyms map[string]string
}

// DefaultCurrencies returns the synonyms the bot understands out of the box.
func DefaultCurrencies() map[string][]string {
	return map[string][]string{
		"EUR": {"евро", "euro", "eur", "€"},
		"USD": {"доллар", "долларов", "доллара", "dollar", "dollars", "usd", "$"},
		"UAH": {"гривна", "гривен", "гривны", "грн", "hryvnia", "uah", "₴"},
	}
}

// DefaultCurrencyTable is NewCurrencyTable(DefaultCurrencies()).
func DefaultCurrencyTable() *CurrencyTable {
	return NewCurrencyTable(DefaultCurrencies())
}

// NewCurrencyTable builds a table from code -> synonyms. Every code is also
// a synonym of itself.
func NewCurrencyTable(synonyms map[string][]string) *CurrencyTable {
	t := &CurrencyTable{synonyms: make(map[string]string)}
	for code, words := range synonyms {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		t.codes = append(t.codes, code)
		t.synonyms[strings.ToLower(code)] = code
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				t.synonyms[w] = code
			}
		}
	}
	sort.Strings(t.codes)
	return t
}

// Codes returns the canonical codes in the table, sorted.
func (t *CurrencyTable) Codes() []string {
	out := make([]string, len(t.codes))
	copy(out, t.codes)
	return out
}

// Lookup resolves a single token to its canonical code.
func (t *CurrencyTable) Lookup(token string) (string, bool) {
	code, ok := t.synonyms[strings.ToLower(strings.TrimSpace(token))]
	return code, ok
}

// Normalize resolves a currency string coming from an outside source
// (e.g. receipt OCR) and falls back to fallback when it is unknown.
func (t *CurrencyTable) Normalize(raw, fallback string) string {
	if code, ok := t.Lookup(raw); ok {
		return code
	}
	return fallback
}

// alternations returns regexp alternations for word-like synonyms and for
// symbol synonyms, longest first so that "долларов" wins over "доллар".
func (t *CurrencyTable) alternations() (words, symbols string) {
	var ws, ss []string
	for syn := range t.synonyms {
		if isWordLike(syn) {
			ws = append(ws, syn)
		} else {
			ss = append(ss, syn)
		}
	}
	return alternation(ws), alternation(ss)
}

func isWordLike(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// noMatch is an empty character class; it keeps group numbering stable when
// a table has no synonyms of one kind.
const noMatch = `[^\x00-\x{10FFFF}]`

func alternation(items []string) string {
	if len(items) == 0 {
		return noMatch
	}
	sort.Slice(items, func(i, j int) bool {
		if len(items[i]) != len(items[j]) {
			return len(items[i]) > len(items[j])
		}
		return items[i] < items[j]
	})
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = regexp.QuoteMeta(it)
	}
	return strings.Join(quoted, "|")
}

// Synonyms returns every known token, including the codes themselves, sorted.
func (t *CurrencyTable) Synonyms() []string {
	out := make([]string, 0, len(t.synonyms))
	for syn := range t.synonyms {
		out = append(out, syn)
	}
	sort.Strings(out)
	return out
}
