// Package extractor reads a product name and price candidates out of a
// loaded page through a small read-only document capability.
package extractor

// Element is a matched node whose rendered text can be read.
type Element interface {
	Text() (string, error)
}

// Document is read-only access to a loaded page. Both the browser page and
// a parsed static HTML document implement it.
type Document interface {
	// QuerySelector returns the first match, or nil without error when
	// nothing matches.
	QuerySelector(selector string) (Element, error)

	// QuerySelectorAll returns every match in document order.
	QuerySelectorAll(selector string) ([]Element, error)

	// Content returns the full serialized markup.
	Content() (string, error)
}
