package engine

import (
	"context"

	"github.com/use-agent/pricescout/extractor"
)

// Page is a loaded product page. Release must be called on every exit path;
// it is safe to call more than once.
type Page interface {
	extractor.Document
	Release()
}

// Loader is the interface that all page backends must implement.
type Loader interface {
	// Name returns the backend identifier (e.g. "http", "browser").
	Name() string

	// Load fetches url and returns a readable page. Errors are
	// *models.ScrapeError values naming the failure.
	Load(ctx context.Context, url string) (Page, error)
}

// StaticPage adapts a parsed HTML document into a Page with nothing to
// release.
type StaticPage struct {
	*extractor.HTMLDocument
}

func (StaticPage) Release() {}
