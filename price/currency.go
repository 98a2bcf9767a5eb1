// Package price turns raw price text into validated amounts and currencies
// and decides which of two observed prices is current and which is original.
package price

import (
	"strings"

	"github.com/use-agent/pricescout/models"
)

// symbolOrder is the fixed resolution precedence. Position in the text does
// not matter.
var symbolOrder = []struct {
	symbol   string
	currency models.Currency
}{
	{"£", models.GBP},
	{"$", models.USD},
	{"€", models.EUR},
}

// ResolveCurrency maps raw text to a currency code, falling back to
// models.DefaultCurrency when no supported symbol is present.
func ResolveCurrency(raw string) models.Currency {
	c, _ := DetectCurrency(raw)
	return c
}

// DetectCurrency is ResolveCurrency that also reports whether a symbol was
// actually found.
func DetectCurrency(raw string) (models.Currency, bool) {
	for _, s := range symbolOrder {
		if strings.Contains(raw, s.symbol) {
			return s.currency, true
		}
	}
	return models.DefaultCurrency, false
}

// HasSymbol reports whether raw contains any supported currency symbol.
func HasSymbol(raw string) bool {
	_, ok := DetectCurrency(raw)
	return ok
}

func isSymbol(r rune) bool {
	return r == '£' || r == '$' || r == '€'
}

func currencyOf(r rune) models.Currency {
	switch r {
	case '$':
		return models.USD
	case '€':
		return models.EUR
	default:
		return models.GBP
	}
}
