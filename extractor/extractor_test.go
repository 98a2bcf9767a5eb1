package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricescout/models"
	"github.com/use-agent/pricescout/price"
)

func mustPage(t *testing.T, markup string) *Page {
	t.Helper()
	doc, err := ParseHTML(markup)
	require.NoError(t, err)
	content, err := doc.Content()
	require.NoError(t, err)
	return NewPage(doc, content)
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"plain heading", `<h1>  Classic   Blazer </h1>`, "Classic Blazer"},
		{"empty h1 falls through to product title", `<h1> </h1><div class="product-title">Silk Scarf</div>`, "Silk Scarf"},
		{"microdata name", `<span itemprop="name">Wool Coat</span>`, "Wool Coat"},
		{"nothing resolvable", `<h2>Not a product</h2>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseHTML(tt.markup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ExtractName(doc))
		})
	}
}

func TestHTMLDocument_QuerySelector(t *testing.T) {
	doc, err := ParseHTML(`<div class="price"><span>£1</span><span>£2</span></div>`)
	require.NoError(t, err)

	el, err := doc.QuerySelector(".missing")
	require.NoError(t, err)
	assert.Nil(t, el)

	els, err := doc.QuerySelectorAll(".price span")
	require.NoError(t, err)
	require.Len(t, els, 2)
	text, _ := els[1].Text()
	assert.Equal(t, "£2", text)

	_, err = doc.QuerySelector("[[bad")
	assert.Error(t, err)
}

func TestSelectorStrategy(t *testing.T) {
	page := mustPage(t, `
		<div class="price">
			<span class="price--was">Was £120.00</span>
			<span class="sale-price">Now £90.00</span>
			<span class="current-price">Call for price</span>
		</div>`)

	m, err := SelectorStrategy{Sale: saleSelectors, Original: originalSelectors}.
		Locate(context.Background(), page, Found{})
	require.NoError(t, err)
	require.NotNil(t, m.Sale)
	require.NotNil(t, m.Original)
	assert.Equal(t, 90.0, m.Sale.Value)
	assert.Equal(t, 120.0, m.Original.Value)
	assert.Equal(t, StrategySelector, m.Sale.Strategy)
}

func TestSelectorStrategy_StrikeThroughMarkup(t *testing.T) {
	page := mustPage(t, `<p><del>£250.00</del> <b>£199.00</b></p>`)
	m, err := SelectorStrategy{Sale: saleSelectors, Original: originalSelectors}.
		Locate(context.Background(), page, Found{})
	require.NoError(t, err)
	assert.Nil(t, m.Sale)
	require.NotNil(t, m.Original)
	assert.Equal(t, 250.0, m.Original.Value)
}

func TestPairStrategy(t *testing.T) {
	tests := []struct {
		name     string
		markup   string
		sale     float64
		original float64
		found    bool
	}{
		{"adjacent dollars", `<span>$313.00</span> <span>$280.00</span>`, 280, 313, true},
		{"sku out of pair range", `<span>£4,500.00</span> <span>£45.00</span>`, 0, 0, false},
		{"identical values", `<span>£45.00</span><span>£45.00</span>`, 0, 0, false},
		{"mixed currencies", `<span>£45.00</span><span>$55.00</span>`, 0, 0, false},
		{"too far apart", `<span>£45.00</span><p>` + strings.Repeat("filler ", 30) + `</p><span>£55.00</span>`, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := PairStrategy{MaxGap: 120}.Locate(context.Background(), mustPage(t, tt.markup), Found{})
			require.NoError(t, err)
			if !tt.found {
				assert.Nil(t, m.Sale)
				assert.Nil(t, m.Original)
				return
			}
			require.NotNil(t, m.Sale)
			require.NotNil(t, m.Original)
			assert.Equal(t, tt.sale, m.Sale.Value)
			assert.Equal(t, tt.original, m.Original.Value)
		})
	}
}

func TestPairStrategy_AgreesWithFilledSlot(t *testing.T) {
	page := mustPage(t, `<p>£15.00 £25.00</p><p>£80.00 £100.00</p>`)
	known := price.NewCandidate("£80.00", StrategySelector, price.GenericRange)

	m, err := PairStrategy{MaxGap: 120}.Locate(context.Background(), page, Found{Sale: known})
	require.NoError(t, err)
	require.NotNil(t, m.Original)
	assert.Equal(t, 100.0, m.Original.Value)
}

func TestWindowStrategy(t *testing.T) {
	page := mustPage(t, `
		<div>
			<span class="label">RRP</span> <span>£150.00</span>
			<span class="label">Our price</span> <span>£110.00</span>
		</div>`)

	m, err := WindowStrategy{Window: 80}.Locate(context.Background(), page, Found{})
	require.NoError(t, err)
	require.NotNil(t, m.Sale)
	require.NotNil(t, m.Original)
	assert.Equal(t, 110.0, m.Sale.Value)
	assert.Equal(t, 150.0, m.Original.Value)
}

func TestWindowStrategy_SkipsStruckSale(t *testing.T) {
	page := mustPage(t, `<div class="price"><strike>£70.00</strike></div>`)

	m, err := WindowStrategy{Window: 80}.Locate(context.Background(), page, Found{})
	require.NoError(t, err)
	assert.Nil(t, m.Sale)
}

func TestKeywordAdjacentStrategy(t *testing.T) {
	page := mustPage(t, `<p>Originally: <em>€80,00</em></p><p><b>€60,00</b> Sale</p>`)

	m, err := KeywordAdjacentStrategy{Reach: 40}.Locate(context.Background(), page, Found{})
	require.NoError(t, err)
	require.NotNil(t, m.Original)
	require.NotNil(t, m.Sale)
	assert.Equal(t, 80.0, m.Original.Value)
	assert.Equal(t, 60.0, m.Sale.Value)
	assert.Equal(t, models.EUR, m.Sale.Currency)
}

func TestGenericScanStrategy(t *testing.T) {
	page := mustPage(t, `<p>£30.00</p><p>£45.00</p><p>£30.00</p><p>£9,999.00</p><p>£20,000.00</p>`)

	m, err := GenericScanStrategy{}.Locate(context.Background(), page, Found{})
	require.NoError(t, err)
	require.NotNil(t, m.Sale)
	require.NotNil(t, m.Original)
	assert.Equal(t, 30.0, m.Sale.Value)
	assert.Equal(t, 2, m.Sale.Occurrences)
	assert.Equal(t, 9999.0, m.Original.Value)
	assert.True(t, LowConfidence(m.Sale.Strategy))
}

func TestGenericScanStrategy_DoesNotInventOriginal(t *testing.T) {
	page := mustPage(t, `<p>£65.00</p><p>Free delivery over £150.00</p>`)
	known := price.NewCandidate("£65.00", StrategyContextualWindow, price.GenericRange)

	m, err := GenericScanStrategy{}.Locate(context.Background(), page, Found{Sale: known})
	require.NoError(t, err)
	assert.Nil(t, m.Sale)
	assert.Nil(t, m.Original)
}

func TestGenericDOMStrategy(t *testing.T) {
	page := mustPage(t, `<div class="product-price">from £12.50</div>`)

	m, err := GenericDOMStrategy{Selectors: genericSelectors}.Locate(context.Background(), page, Found{})
	require.NoError(t, err)
	require.NotNil(t, m.Sale)
	assert.Equal(t, 12.5, m.Sale.Value)
}

type failingStrategy struct{ panics bool }

func (failingStrategy) Name() string { return "failing" }

func (f failingStrategy) Locate(context.Context, *Page, Found) (Match, error) {
	if f.panics {
		panic("boom")
	}
	return Match{}, errors.New("malformed fragment")
}

func TestLocator_SoftFailures(t *testing.T) {
	page := mustPage(t, `<h1>Scarf</h1><p>£65.00</p>`)
	l := NewLocator(
		failingStrategy{},
		failingStrategy{panics: true},
		GenericScanStrategy{},
	)

	found := l.Locate(context.Background(), page)
	require.NotNil(t, found.Sale)
	assert.Equal(t, 65.0, found.Sale.Value)
	assert.Nil(t, found.Original)
}

func TestLocator_FirstCandidatePerSlotWins(t *testing.T) {
	page := mustPage(t, `
		<span class="sale-price">£80.00</span>
		<p>£15.00 £25.00</p>
		<p>was £100.00</p>`)

	found := NewLocator().Locate(context.Background(), page)
	require.NotNil(t, found.Sale)
	require.NotNil(t, found.Original)
	assert.Equal(t, 80.0, found.Sale.Value)
	assert.Equal(t, StrategySelector, found.Sale.Strategy)
	assert.Equal(t, 100.0, found.Original.Value)
}

func TestLocator_Idempotent(t *testing.T) {
	markup := `<h1>Classic Blazer</h1><span>$313.00</span> <span>$280.00</span>`
	l := NewLocator()

	first := l.Locate(context.Background(), mustPage(t, markup))
	for i := 0; i < 5; i++ {
		again := l.Locate(context.Background(), mustPage(t, markup))
		assert.Equal(t, first, again)
	}
}

func TestLocator_Strategies(t *testing.T) {
	assert.Equal(t, []string{
		StrategySelector,
		StrategyContextualPair,
		StrategyContextualWindow,
		StrategyKeywordAdjacent,
		StrategyGenericScan,
		StrategyGenericDOM,
	}, NewLocator().Strategies())
}
