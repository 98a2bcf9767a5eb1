package price

import (
	"unicode"

	"github.com/use-agent/pricescout/models"
)

// Token is a numeral found in text, optionally anchored to a currency
// symbol that immediately precedes it (whitespace allowed in between).
type Token struct {
	// Start and End are byte offsets of the whole token, symbol included.
	Start, End int

	// Symbol is the anchoring currency symbol, or 0 for a bare numeral.
	Symbol rune

	// Numeral is the digit/separator run, e.g. "1,234.56".
	Numeral string
}

// Anchored reports whether the token carries a currency symbol.
func (t Token) Anchored() bool { return t.Symbol != 0 }

// Currency returns the token's currency, or the default for bare numerals.
func (t Token) Currency() models.Currency {
	if t.Symbol == 0 {
		return models.DefaultCurrency
	}
	return currencyOf(t.Symbol)
}

// Amount normalizes the numeral. It does not apply any range check.
func (t Token) Amount() (float64, bool) {
	a, ok := parseNumeral(t.Numeral)
	return a.value, ok
}

type scanState int

const (
	stIdle   scanState = iota
	stSymbol           // saw a currency symbol, waiting for digits
	stDigits           // inside a digit group
	stSep              // saw '.' or ',' right after a digit group
)

// Scan returns every numeral in text in document order. A separator is only
// part of a numeral when a digit follows it, so "£65." yields "65".
func Scan(text string) []Token {
	var (
		toks      []Token
		st        = stIdle
		sym       rune
		symStart  int
		numStart  int
		digitsEnd int
	)

	emit := func() {
		start := numStart
		if sym != 0 {
			start = symStart
		}
		toks = append(toks, Token{
			Start:   start,
			End:     digitsEnd,
			Symbol:  sym,
			Numeral: text[numStart:digitsEnd],
		})
		sym = 0
	}

	// idle handles a rune while no token is open.
	idle := func(i int, r rune) {
		switch {
		case isSymbol(r):
			st, sym, symStart = stSymbol, r, i
		case isDigit(r):
			st, sym, numStart, digitsEnd = stDigits, 0, i, i+1
		default:
			st = stIdle
		}
	}

	for i, r := range text {
		switch st {
		case stIdle:
			idle(i, r)
		case stSymbol:
			switch {
			case isDigit(r):
				st, numStart, digitsEnd = stDigits, i, i+1
			case unicode.IsSpace(r):
				// "£ 65.00"
			default:
				sym = 0
				idle(i, r)
			}
		case stDigits:
			switch {
			case isDigit(r):
				digitsEnd = i + 1
			case r == '.' || r == ',':
				st = stSep
			default:
				emit()
				idle(i, r)
			}
		case stSep:
			if isDigit(r) {
				st, digitsEnd = stDigits, i+1
				continue
			}
			emit()
			idle(i, r)
		}
	}
	if st == stDigits || st == stSep {
		emit()
	}
	return toks
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
