package price

import "github.com/use-agent/pricescout/models"

// Candidate is one raw price observation produced by an extraction strategy.
type Candidate struct {
	Raw       string
	Value     float64
	Parsed    bool
	Currency  models.Currency
	HasSymbol bool

	// Strategy names the technique that produced the candidate.
	Strategy string

	// Occurrences is how often the same value appeared on the page.
	// Informational only.
	Occurrences int
}

// NewCandidate parses raw within r and resolves its currency.
func NewCandidate(raw, strategy string, r Range) *Candidate {
	c := &Candidate{Raw: raw, Strategy: strategy, Occurrences: 1}
	c.Currency, c.HasSymbol = DetectCurrency(raw)
	c.Value, c.Parsed = Parse(raw, r)
	return c
}

// TokenCandidate builds a candidate from an already normalized token.
func TokenCandidate(t Token, raw string, value float64, strategy string) *Candidate {
	return &Candidate{
		Raw:         raw,
		Value:       value,
		Parsed:      true,
		Currency:    t.Currency(),
		HasSymbol:   t.Anchored(),
		Strategy:    strategy,
		Occurrences: 1,
	}
}

func (c *Candidate) usable() bool {
	return c != nil && c.Parsed
}

// Resolution is the final (current, original, currency) triple.
type Resolution struct {
	Current  *Candidate
	Original *Candidate
	Currency models.Currency
}

// CurrentPrice returns the current amount or nil.
func (r Resolution) CurrentPrice() *float64 {
	if r.Current == nil {
		return nil
	}
	v := r.Current.Value
	return &v
}

// OriginalPrice returns the original amount or nil.
func (r Resolution) OriginalPrice() *float64 {
	if r.Original == nil {
		return nil
	}
	v := r.Original.Value
	return &v
}

// Disambiguate orders a sale and an original candidate so that the current
// price never exceeds the original. Unparsed candidates count as absent. A
// lone candidate is always current, and an original equal to the current
// price is dropped since it is not a distinct second price.
func Disambiguate(sale, original *Candidate) Resolution {
	cur, orig := sale, original
	if !cur.usable() {
		cur = nil
	}
	if !orig.usable() {
		orig = nil
	}

	switch {
	case cur == nil && orig != nil:
		cur, orig = orig, nil
	case cur != nil && orig != nil:
		if cur.Value > orig.Value {
			cur, orig = orig, cur
		} else if cur.Value == orig.Value {
			orig = nil
		}
	}

	res := Resolution{Current: cur, Original: orig, Currency: models.DefaultCurrency}
	for _, c := range []*Candidate{cur, orig, sale, original} {
		if c != nil && c.HasSymbol {
			res.Currency = c.Currency
			break
		}
	}
	return res
}
