package browser

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/use-agent/pricescout/extractor"
)

// Page is a navigated browser tab exposed as an extractor.Document. Every
// query is bounded by the selector timeout and never waits for an element to
// appear.
type Page struct {
	page       *rod.Page // bound to a context that ends at Release
	selTimeout time.Duration

	releaseOnce sync.Once
	release     func()
}

func (p *Page) ctx() context.Context {
	return p.page.GetContext()
}

// QuerySelector returns the first match or (nil, nil).
func (p *Page) QuerySelector(selector string) (extractor.Element, error) {
	tp := p.page.Timeout(p.selTimeout)
	defer tp.CancelTimeout()

	has, el, err := tp.Has(selector)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return &element{el: el.Context(p.ctx()), timeout: p.selTimeout}, nil
}

// QuerySelectorAll returns every match in document order.
func (p *Page) QuerySelectorAll(selector string) ([]extractor.Element, error) {
	tp := p.page.Timeout(p.selTimeout)
	defer tp.CancelTimeout()

	els, err := tp.Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]extractor.Element, len(els))
	for i, el := range els {
		out[i] = &element{el: el.Context(p.ctx()), timeout: p.selTimeout}
	}
	return out, nil
}

// Content returns the rendered document's serialized HTML.
func (p *Page) Content() (string, error) {
	return p.page.HTML()
}

// Release closes the tab and frees its slot. Safe to call more than once.
func (p *Page) Release() {
	p.releaseOnce.Do(func() {
		if p.release != nil {
			p.release()
		}
	})
}

type element struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *element) Text() (string, error) {
	te := e.el.Timeout(e.timeout)
	defer te.CancelTimeout()
	return te.Text()
}
