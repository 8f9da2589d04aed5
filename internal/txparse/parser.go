// Package txparse turns free-text chat messages such as "+2000 EUR зарплата"
// or "35 продукты" into structured transactions.
package txparse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsedTransaction is the structured form of a transaction message.
type ParsedTransaction struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	IsIncome    bool            `json:"is_income"`
}

const amountPattern = `(\d+(?:\.\d+)?)`

// Parser extracts amount, currency and description from a message.
// A Parser is immutable and safe for concurrent use.
type Parser struct {
	table           *CurrencyTable
	defaultCurrency string

	// <amount> <currency> <description>
	leading *regexp.Regexp
	// <amount> <description> <currency>; words need a space, symbols may be glued
	trailing *regexp.Regexp
	// <amount> <description>
	bare *regexp.Regexp
	// <amount><currency> anywhere in the text
	inline *regexp.Regexp
}

// New builds a parser for the given currency table. defaultCurrency is used
// when a message carries no currency token at all.
func New(table *CurrencyTable, defaultCurrency string) *Parser {
	if table == nil {
		table = DefaultCurrencyTable()
	}
	words, symbols := table.alternations()
	all := words + "|" + symbols

	return &Parser{
		table:           table,
		defaultCurrency: strings.ToUpper(strings.TrimSpace(defaultCurrency)),
		leading:         regexp.MustCompile(`(?is)^` + amountPattern + `\s*(` + all + `)\s+(.+)$`),
		trailing:        regexp.MustCompile(`(?is)^` + amountPattern + `\s+(.+?)(?:\s+(` + words + `)|\s*(` + symbols + `))$`),
		bare:            regexp.MustCompile(`(?is)^` + amountPattern + `\s+(.+)$`),
		inline:          regexp.MustCompile(`(?i)` + amountPattern + `\s*(?:(` + words + `)(?:[^\p{L}\p{N}]|$)|(` + symbols + `))`),
	}
}

// DefaultCurrency returns the currency assigned to messages without one.
func (p *Parser) DefaultCurrency() string {
	return p.defaultCurrency
}

// Table returns the parser's currency table.
func (p *Parser) Table() *CurrencyTable {
	return p.table
}

// Parse converts raw text into a transaction. ok is false when the text is
// not a transaction; callers answer with format help in that case.
func (p *Parser) Parse(raw string) (ParsedTransaction, bool) {
	text := strings.TrimSpace(raw)
	isIncome := false
	if strings.HasPrefix(text, "+") {
		isIncome = true
		text = strings.TrimSpace(text[1:])
	}

	if m := p.leading.FindStringSubmatch(text); m != nil {
		return p.build(m[1], m[2], m[3], isIncome)
	}

	if m := p.trailing.FindStringSubmatch(text); m != nil {
		token := m[3]
		if token == "" {
			token = m[4]
		}
		return p.build(m[1], token, m[2], isIncome)
	}

	if m := p.bare.FindStringSubmatch(text); m != nil {
		desc := strings.TrimSpace(m[2])
		// "50 eur" is an amount with a currency and nothing else
		if _, isCurrency := p.table.Lookup(desc); isCurrency {
			return ParsedTransaction{}, false
		}
		return p.build(m[1], "", desc, isIncome)
	}

	return ParsedTransaction{}, false
}

// ParseAmount finds the first "<amount> <currency>" pair anywhere in the text,
// e.g. "лимит 300 евро на кафе". The currency is required.
func (p *Parser) ParseAmount(text string) (decimal.Decimal, string, bool) {
	m := p.inline.FindStringSubmatch(text)
	if m == nil {
		return decimal.Decimal{}, "", false
	}
	token := m[2]
	if token == "" {
		token = m[3]
	}
	code, ok := p.table.Lookup(token)
	if !ok {
		return decimal.Decimal{}, "", false
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil || !amount.IsPositive() {
		return decimal.Decimal{}, "", false
	}
	return amount, code, true
}

func (p *Parser) build(amountText, currencyToken, description string, isIncome bool) (ParsedTransaction, bool) {
	amount, err := decimal.NewFromString(amountText)
	if err != nil || !amount.IsPositive() {
		return ParsedTransaction{}, false
	}

	description = strings.TrimSpace(description)
	if description == "" {
		return ParsedTransaction{}, false
	}

	currency := p.defaultCurrency
	if currencyToken != "" {
		code, ok := p.table.Lookup(currencyToken)
		if !ok {
			return ParsedTransaction{}, false
		}
		currency = code
	}

	return ParsedTransaction{
		Amount:      amount,
		Currency:    currency,
		Description: description,
		IsIncome:    isIncome,
	}, true
}
