package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/use-agent/pricescout/price"
)

// Found holds the candidates accepted so far in a cascade.
type Found struct {
	Sale     *price.Candidate
	Original *price.Candidate
}

// Complete reports whether both slots are filled.
func (f Found) Complete() bool {
	return f.Sale != nil && f.Original != nil
}

// Match is what a single strategy proposes. Either field may be nil.
type Match = Found

// Strategy is one named price extraction technique.
type Strategy interface {
	Name() string

	// Locate proposes candidates. found carries what earlier strategies
	// already accepted so a strategy can skip or stay consistent with it.
	Locate(ctx context.Context, page *Page, found Found) (Match, error)
}

// Page bundles the inputs strategies read from.
type Page struct {
	Doc     Document
	Content string

	scanned bool
	text    string
	tokens  []price.Token
	struck  [][]int
}

// NewPage wraps a document and its serialized content.
func NewPage(doc Document, content string) *Page {
	return &Page{Doc: doc, Content: content}
}

var (
	reHidden = regexp.MustCompile(`(?is)<script\b.*?</script>|<style\b.*?</style>|<!--.*?-->`)
	reStruck = regexp.MustCompile(`(?is)<(?:del|s|strike)\b[^>]*>.*?</(?:del|s|strike)>`)
)

func (p *Page) scan() {
	if p.scanned {
		return
	}
	p.scanned = true

	// Blank out scripts, styles and comments without moving offsets.
	p.text = reHidden.ReplaceAllStringFunc(p.Content, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
	for _, t := range price.Scan(p.text) {
		if t.Anchored() {
			p.tokens = append(p.tokens, t)
		}
	}
	p.struck = reStruck.FindAllStringIndex(p.text, -1)
}

// Text returns the content with non-rendered sections blanked out.
func (p *Page) Text() string {
	p.scan()
	return p.text
}

// Tokens returns every currency-anchored numeral in the content.
func (p *Page) Tokens() []price.Token {
	p.scan()
	return p.tokens
}

// Struck reports whether t sits inside strike-through markup.
func (p *Page) Struck(t price.Token) bool {
	p.scan()
	for _, span := range p.struck {
		if t.Start >= span[0] && t.End <= span[1] {
			return true
		}
	}
	return false
}

// Raw returns the token's text as it appears in the content.
func (p *Page) Raw(t price.Token) string {
	p.scan()
	return p.text[t.Start:t.End]
}

// Locator runs strategies in order, filling the sale and original slots
// independently. Each slot keeps the first candidate offered for it.
type Locator struct {
	strategies []Strategy
}

// NewLocator returns a Locator over the given strategies, or over
// DefaultStrategies when none are given.
func NewLocator(strategies ...Strategy) *Locator {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Locator{strategies: strategies}
}

// Strategies returns the strategy names in run order.
func (l *Locator) Strategies() []string {
	names := make([]string, len(l.strategies))
	for i, s := range l.strategies {
		names[i] = s.Name()
	}
	return names
}

// Locate runs the cascade. It never fails: strategy errors and panics are
// logged and the cascade moves on.
func (l *Locator) Locate(ctx context.Context, page *Page) Found {
	var found Found
	for _, s := range l.strategies {
		if found.Complete() || ctx.Err() != nil {
			break
		}

		m, err := runStrategy(ctx, s, page, found)
		if err != nil {
			slog.Warn("price strategy failed, continuing",
				"strategy", s.Name(),
				"error", err,
			)
			continue
		}

		if found.Sale == nil && m.Sale != nil {
			found.Sale = m.Sale
		}
		if found.Original == nil && m.Original != nil {
			found.Original = m.Original
		}
	}
	return found
}

func runStrategy(ctx context.Context, s Strategy, page *Page, found Found) (m Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Locate(ctx, page, found)
}
