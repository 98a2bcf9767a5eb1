package extractor

import (
	"log/slog"
	"strings"
)

// nameSelectors go from the broadest heading to retailer specific markup.
// The broad "h1" is fastest but can hit an unrelated heading; the rest only
// run when it yields empty text.
var nameSelectors = []string{
	"h1",
	"h1.product-title",
	"h1[data-testid='product-title']",
	".product-name h1",
	".product-title",
	"h1.pdp-product-name",
	"[itemprop='name']",
}

// ExtractName returns the first non-empty trimmed text among nameSelectors.
// An empty string means no name could be found.
func ExtractName(doc Document) string {
	for _, sel := range nameSelectors {
		el, err := doc.QuerySelector(sel)
		if err != nil {
			slog.Debug("name selector failed", "selector", sel, "error", err)
			continue
		}
		if el == nil {
			continue
		}
		text, err := el.Text()
		if err != nil {
			slog.Debug("name text unreadable", "selector", sel, "error", err)
			continue
		}
		if name := collapseSpace(text); name != "" {
			return name
		}
	}
	return ""
}

// collapseSpace trims and folds internal whitespace runs to single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
