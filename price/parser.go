package price

import (
	"math"
	"strconv"
	"strings"
)

// Range is an inclusive band of acceptable amounts for a call site.
type Range struct {
	Min, Max float64
}

var (
	// GenericRange bounds single candidates from selectors and page scans.
	GenericRange = Range{Min: 1, Max: 10000}

	// PairRange is the tighter band for two prices found close together,
	// which rejects SKU and size numbers posing as a price pair.
	PairRange = Range{Min: 1, Max: 1000}
)

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Parse extracts a price from raw text.
//
// Symbol-anchored numerals are tried first since the symbol pins the
// position. Failing that, bare numerals are accepted only when they have two
// decimal digits or at least three integer digits, so quantities like "2"
// are ignored. The first numeral that normalizes inside r wins.
func Parse(raw string, r Range) (float64, bool) {
	toks := Scan(raw)

	for _, t := range toks {
		if !t.Anchored() {
			continue
		}
		if a, ok := parseNumeral(t.Numeral); ok && r.Contains(a.value) {
			return a.value, true
		}
	}

	for _, t := range toks {
		a, ok := parseNumeral(t.Numeral)
		if !ok || (a.fracDigits != 2 && a.intDigits < 3) {
			continue
		}
		if r.Contains(a.value) {
			return a.value, true
		}
	}
	return 0, false
}

type amount struct {
	value      float64
	intDigits  int
	fracDigits int
}

// parseNumeral normalizes a digit/separator run such as "1,234.56",
// "12,50" or "1.234,56" into a value rounded to cents.
func parseNumeral(numeral string) (amount, bool) {
	var (
		groups []string
		seps   []byte
		start  int
	)
	for i := 0; i < len(numeral); i++ {
		switch c := numeral[i]; c {
		case '.', ',':
			groups = append(groups, numeral[start:i])
			seps = append(seps, c)
			start = i + 1
		default:
			if c < '0' || c > '9' {
				return amount{}, false
			}
		}
	}
	groups = append(groups, numeral[start:])
	for _, g := range groups {
		if g == "" {
			return amount{}, false
		}
	}

	dec, ok := decimalSeparator(groups, seps)
	if !ok {
		return amount{}, false
	}

	var intPart, fracPart string
	if dec < 0 {
		intPart = strings.Join(groups, "")
	} else {
		intPart = strings.Join(groups[:dec+1], "")
		fracPart = strings.Join(groups[dec+1:], "")
	}

	s := intPart
	if fracPart != "" {
		s += "." + fracPart
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return amount{}, false
	}

	return amount{
		value:      math.Round(v*100) / 100,
		intDigits:  len(strings.TrimLeft(intPart, "0")),
		fracDigits: len(fracPart),
	}, true
}

// decimalSeparator decides which separator, if any, is the decimal point.
// It returns the index into seps, -1 when every separator groups thousands,
// and false when the numeral cannot be read either way.
//
// The decision is keyed on the separator kinds present and on the digit
// count of the trailing group:
//
//	no separators                 -> integer
//	commas only, one comma, 2 tail -> decimal comma      ("12,50")
//	commas only, otherwise         -> thousands          ("1,234", "1,234,567")
//	dots only, one dot             -> decimal dot        ("140.00", "1.5")
//	dots only, several dots        -> thousands          ("1.234.567")
//	mixed, last kind occurs once   -> last is decimal    ("1,234.56", "1.234,56")
//	mixed, otherwise               -> unreadable
func decimalSeparator(groups []string, seps []byte) (int, bool) {
	if len(seps) == 0 {
		return -1, true
	}
	last := len(seps) - 1
	tail := len(groups[last+1])

	var commas, dots int
	for _, s := range seps {
		if s == ',' {
			commas++
		} else {
			dots++
		}
	}

	switch {
	case dots == 0:
		if commas == 1 && tail == 2 {
			return last, true
		}
		return -1, true
	case commas == 0:
		if dots == 1 {
			return last, true
		}
		return -1, true
	default:
		lastKind := commas
		if seps[last] == '.' {
			lastKind = dots
		}
		if lastKind != 1 || tail > 2 {
			return 0, false
		}
		return last, true
	}
}
