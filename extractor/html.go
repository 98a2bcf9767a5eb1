package extractor

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// compiled caches parsed selectors; the selector lists are fixed, so the
// cache stays small.
var compiled sync.Map // string -> cascadia.Selector

func compileSelector(sel string) (cascadia.Selector, error) {
	if v, ok := compiled.Load(sel); ok {
		return v.(cascadia.Selector), nil
	}
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("extractor: compile selector %q: %w", sel, err)
	}
	compiled.Store(sel, m)
	return m, nil
}

// HTMLDocument is a Document over static markup parsed with goquery.
type HTMLDocument struct {
	doc *goquery.Document

	once    sync.Once
	content string
	err     error
}

// NewHTMLDocument parses markup from r.
func NewHTMLDocument(r io.Reader) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("extractor: parse html: %w", err)
	}
	return &HTMLDocument{doc: doc}, nil
}

// ParseHTML is NewHTMLDocument for a string.
func ParseHTML(markup string) (*HTMLDocument, error) {
	return NewHTMLDocument(strings.NewReader(markup))
}

func (d *HTMLDocument) QuerySelector(selector string) (Element, error) {
	m, err := compileSelector(selector)
	if err != nil {
		return nil, err
	}
	s := d.doc.FindMatcher(m).First()
	if s.Length() == 0 {
		return nil, nil
	}
	return htmlElement{s}, nil
}

func (d *HTMLDocument) QuerySelectorAll(selector string) ([]Element, error) {
	m, err := compileSelector(selector)
	if err != nil {
		return nil, err
	}
	var out []Element
	d.doc.FindMatcher(m).Each(func(_ int, s *goquery.Selection) {
		out = append(out, htmlElement{s})
	})
	return out, nil
}

// Content re-renders the parsed tree so entities are decoded the same way a
// browser serializes its DOM.
func (d *HTMLDocument) Content() (string, error) {
	d.once.Do(func() {
		d.content, d.err = d.doc.Html()
	})
	return d.content, d.err
}

type htmlElement struct {
	sel *goquery.Selection
}

func (e htmlElement) Text() (string, error) {
	return e.sel.Text(), nil
}
