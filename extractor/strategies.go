package extractor

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/use-agent/pricescout/models"
	"github.com/use-agent/pricescout/price"
)

// Strategy names, reported as the source of each price.
const (
	StrategySelector         = "selector"
	StrategyContextualPair   = "contextual-pair"
	StrategyContextualWindow = "contextual-window"
	StrategyKeywordAdjacent  = "keyword-adjacent"
	StrategyGenericScan      = "generic-scan"
	StrategyGenericDOM       = "generic-dom"
)

// LowConfidence reports whether a strategy name denotes a guess from
// unlabelled page prices.
func LowConfidence(strategy string) bool {
	return strategy == StrategyGenericScan || strategy == StrategyGenericDOM
}

// DefaultStrategies is the canonical cascade order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		SelectorStrategy{Sale: saleSelectors, Original: originalSelectors},
		PairStrategy{MaxGap: 120},
		WindowStrategy{Window: 80},
		KeywordAdjacentStrategy{Reach: 40},
		GenericScanStrategy{},
		GenericDOMStrategy{Selectors: genericSelectors},
	}
}

var saleSelectors = []string{
	".price .current-price",
	".current-price",
	".price-current",
	".sale-price",
	".price-sale",
	".price--sale",
	".price__sale",
	".price-now",
	".price--now",
	".discounted-price",
	".price--discounted",
	".special-price",
	"[data-testid='sale-price']",
	"[data-testid='current-price']",
}

var originalSelectors = []string{
	".original-price",
	".price-original",
	".price--original",
	".was-price",
	".price-was",
	".price--was",
	".compare-at-price",
	".price--compare",
	".regular-price",
	".price--regular",
	".rrp",
	"[data-testid='original-price']",
	".price del",
	".price s",
	"del",
	"s",
	"strike",
}

var genericSelectors = []string{
	"[itemprop='price']",
	".product-price",
	"[data-testid='price']",
	".price",
	"[class*='price']",
	".amount",
}

// ── 1. Specific selectors ──────────────────────────────────────────

// SelectorStrategy reads elements whose classes name a sale or an original
// price. An element counts only if its text carries a currency symbol.
type SelectorStrategy struct {
	Sale     []string
	Original []string
}

func (SelectorStrategy) Name() string { return StrategySelector }

func (s SelectorStrategy) Locate(ctx context.Context, page *Page, found Found) (Match, error) {
	var m Match
	if found.Sale == nil {
		m.Sale = firstPricedElement(ctx, page.Doc, s.Sale, StrategySelector)
	}
	if found.Original == nil {
		m.Original = firstPricedElement(ctx, page.Doc, s.Original, StrategySelector)
	}
	return m, nil
}

// firstPricedElement returns the first element across selectors whose text
// has a currency symbol and parses within the generic range.
func firstPricedElement(ctx context.Context, doc Document, selectors []string, strategy string) *price.Candidate {
	for _, sel := range selectors {
		if ctx.Err() != nil {
			return nil
		}
		els, err := doc.QuerySelectorAll(sel)
		if err != nil {
			slog.Debug("price selector failed", "selector", sel, "error", err)
			continue
		}
		for _, el := range els {
			text, err := el.Text()
			if err != nil {
				continue
			}
			text = collapseSpace(text)
			if !price.HasSymbol(text) {
				continue
			}
			if c := price.NewCandidate(text, strategy, price.GenericRange); c.Parsed {
				return c
			}
		}
	}
	return nil
}

// ── 2. Two prices close together ───────────────────────────────────

// PairStrategy looks for two adjacent prices in the same currency within
// MaxGap bytes of each other, the way retailers render "was / now" without
// distinguishing classes. Both values must be distinct and in PairRange.
type PairStrategy struct {
	MaxGap int
}

func (PairStrategy) Name() string { return StrategyContextualPair }

func (s PairStrategy) Locate(ctx context.Context, page *Page, found Found) (Match, error) {
	toks := page.Tokens()
	for i := 0; i+1 < len(toks); i++ {
		if ctx.Err() != nil {
			return Match{}, ctx.Err()
		}
		a, b := toks[i], toks[i+1]
		if a.Symbol != b.Symbol || b.Start-a.End > s.MaxGap {
			continue
		}
		va, okA := a.Amount()
		vb, okB := b.Amount()
		if !okA || !okB || va == vb ||
			!price.PairRange.Contains(va) || !price.PairRange.Contains(vb) {
			continue
		}

		lo, hi := a, b
		vlo, vhi := va, vb
		if vlo > vhi {
			lo, hi, vlo, vhi = b, a, vb, va
		}

		// With one slot already filled the pair must agree with it.
		if found.Sale != nil && found.Sale.Value != vlo {
			continue
		}
		if found.Original != nil && found.Original.Value != vhi {
			continue
		}

		return Match{
			Sale:     price.TokenCandidate(lo, page.Raw(lo), vlo, StrategyContextualPair),
			Original: price.TokenCandidate(hi, page.Raw(hi), vhi, StrategyContextualPair),
		}, nil
	}
	return Match{}, nil
}

// ── 3. Keyword windows ─────────────────────────────────────────────

type role int

const (
	roleNone role = iota
	roleSale
	roleOriginal
)

var reWindowKeyword = regexp.MustCompile(`(?i)\b(our price|sale|now|price|was|originally|rrp)\b`)

func windowRole(keyword string) role {
	switch strings.ToLower(keyword) {
	case "was", "originally", "rrp":
		return roleOriginal
	default:
		return roleSale
	}
}

// WindowStrategy assigns each price the role of the closest keyword that
// ends at most Window bytes before it. Struck-through prices are never
// taken as the sale price.
type WindowStrategy struct {
	Window int
}

func (WindowStrategy) Name() string { return StrategyContextualWindow }

func (s WindowStrategy) Locate(ctx context.Context, page *Page, found Found) (Match, error) {
	text := page.Text()
	keywords := reWindowKeyword.FindAllStringSubmatchIndex(text, -1)
	if len(keywords) == 0 {
		return Match{}, nil
	}

	var m Match
	k := 0
	for _, t := range page.Tokens() {
		if ctx.Err() != nil {
			return m, ctx.Err()
		}
		// Advance to the last keyword ending before this token.
		for k+1 < len(keywords) && keywords[k+1][1] <= t.Start {
			k++
		}
		kw := keywords[k]
		if kw[1] > t.Start || t.Start-kw[1] > s.Window {
			continue
		}

		v, ok := t.Amount()
		if !ok || !price.GenericRange.Contains(v) {
			continue
		}

		switch windowRole(text[kw[2]:kw[3]]) {
		case roleSale:
			if found.Sale == nil && m.Sale == nil && !page.Struck(t) {
				m.Sale = price.TokenCandidate(t, page.Raw(t), v, StrategyContextualWindow)
			}
		case roleOriginal:
			if found.Original == nil && m.Original == nil {
				m.Original = price.TokenCandidate(t, page.Raw(t), v, StrategyContextualWindow)
			}
		}
		if (found.Sale != nil || m.Sale != nil) && (found.Original != nil || m.Original != nil) {
			break
		}
	}
	return m, nil
}

// ── 4. Keyword-adjacent fallback ───────────────────────────────────

var (
	reTag        = regexp.MustCompile(`<[^>]*>`)
	reSaleBefore = regexp.MustCompile(`(?i)\b(?:sale|now|discounted)\b(?:\s*price)?[\s:\-–]*$`)
	reSaleAfter  = regexp.MustCompile(`(?i)^[\s\-–]*(?:sale|now)\b`)
	reOrigBefore = regexp.MustCompile(`(?i)\b(?:was|originally|before|regular|rrp)\b(?:\s*price)?[\s:\-–]*$`)
)

// KeywordAdjacentStrategy is a tighter, single-sided version of the window
// strategy. Markup is ignored when checking adjacency, and a price inside
// <del>, <s> or <strike> counts as the original.
type KeywordAdjacentStrategy struct {
	Reach int
}

func (KeywordAdjacentStrategy) Name() string { return StrategyKeywordAdjacent }

func (s KeywordAdjacentStrategy) Locate(ctx context.Context, page *Page, found Found) (Match, error) {
	text := page.Text()
	var m Match
	for _, t := range page.Tokens() {
		if ctx.Err() != nil {
			return m, ctx.Err()
		}
		v, ok := t.Amount()
		if !ok || !price.GenericRange.Contains(v) {
			continue
		}

		before := reTag.ReplaceAllString(text[max(0, t.Start-s.Reach):t.Start], " ")
		after := reTag.ReplaceAllString(text[t.End:min(len(text), t.End+s.Reach)], " ")

		switch {
		case found.Original == nil && m.Original == nil &&
			(page.Struck(t) || reOrigBefore.MatchString(before)):
			m.Original = price.TokenCandidate(t, page.Raw(t), v, StrategyKeywordAdjacent)
		case found.Sale == nil && m.Sale == nil && !page.Struck(t) &&
			(reSaleBefore.MatchString(before) || reSaleAfter.MatchString(after)):
			m.Sale = price.TokenCandidate(t, page.Raw(t), v, StrategyKeywordAdjacent)
		}
	}
	return m, nil
}

// ── 5. Generic currency scan ───────────────────────────────────────

// GenericScanStrategy collects every price on the page. With two or more
// distinct values the minimum is the sale and the maximum the original.
// It only runs while the sale slot is empty: pairing a labelled sale price
// with an arbitrary page maximum would invent an original price.
type GenericScanStrategy struct{}

func (GenericScanStrategy) Name() string { return StrategyGenericScan }

type scanKey struct {
	value    float64
	currency models.Currency
}

func (GenericScanStrategy) Locate(ctx context.Context, page *Page, found Found) (Match, error) {
	if found.Sale != nil {
		return Match{}, nil
	}

	counts := make(map[scanKey]*price.Candidate)
	var order []scanKey
	for _, t := range page.Tokens() {
		if ctx.Err() != nil {
			return Match{}, ctx.Err()
		}
		v, ok := t.Amount()
		if !ok || !price.GenericRange.Contains(v) {
			continue
		}
		key := scanKey{v, t.Currency()}
		if c, seen := counts[key]; seen {
			c.Occurrences++
			continue
		}
		counts[key] = price.TokenCandidate(t, page.Raw(t), v, StrategyGenericScan)
		order = append(order, key)
	}
	if len(order) == 0 {
		return Match{}, nil
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].value < order[j].value })
	lo, hi := counts[order[0]], counts[order[len(order)-1]]

	if found.Original != nil {
		// Only a value below the known original can be the sale.
		if lo.Value < found.Original.Value {
			return Match{Sale: lo}, nil
		}
		return Match{}, nil
	}
	if len(order) == 1 {
		return Match{Sale: lo}, nil
	}
	return Match{Sale: lo, Original: hi}, nil
}

// ── 6. Generic DOM fallback ────────────────────────────────────────

// GenericDOMStrategy is the last resort: generic price classes, used only
// when nothing else produced a candidate.
type GenericDOMStrategy struct {
	Selectors []string
}

func (GenericDOMStrategy) Name() string { return StrategyGenericDOM }

func (s GenericDOMStrategy) Locate(ctx context.Context, page *Page, found Found) (Match, error) {
	if found.Sale != nil || found.Original != nil {
		return Match{}, nil
	}
	return Match{Sale: firstPricedElement(ctx, page.Doc, s.Selectors, StrategyGenericDOM)}, nil
}
