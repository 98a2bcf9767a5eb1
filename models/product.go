package models

import "time"

// Currency is an ISO 4217 code for one of the supported currencies.
type Currency string

const (
	GBP Currency = "GBP"
	USD Currency = "USD"
	EUR Currency = "EUR"

	// DefaultCurrency applies when no currency symbol is present.
	DefaultCurrency = GBP
)

// ScrapeResult is the structured price record extracted from one product page.
//
// A nil *ScrapeResult means nothing could be extracted. A non-nil result
// always has a Name; either price may be nil when it was not found.
type ScrapeResult struct {
	Name          string   `json:"name"`
	CurrentPrice  *float64 `json:"current_price"`
	OriginalPrice *float64 `json:"original_price"`
	Currency      Currency `json:"currency"`

	// CurrentSource and OriginalSource name the strategy that produced each
	// price ("selector", "contextual-pair", "generic-scan", ...).
	CurrentSource  string `json:"current_source,omitempty"`
	OriginalSource string `json:"original_source,omitempty"`

	// LowConfidence is set when the current price was guessed from
	// unlabelled prices on the page.
	LowConfidence bool `json:"low_confidence"`
}

// HasPrice reports whether a current price was found.
func (r *ScrapeResult) HasPrice() bool {
	return r != nil && r.CurrentPrice != nil
}

// Product is a tracked product row.
type Product struct {
	ID            int64     `json:"id"`
	URL           string    `json:"url"`
	Name          string    `json:"name"`
	CurrentPrice  *float64  `json:"current_price"`
	OriginalPrice *float64  `json:"original_price"`
	Currency      Currency  `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PriceHistory is one observation of a product's price.
type PriceHistory struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	Price         *float64  `json:"price"`
	OriginalPrice *float64  `json:"original_price"`
	Currency      Currency  `json:"currency"`
	CheckedAt     time.Time `json:"checked_at"`
}

// PriceChange is emitted when a re-check observes a different current price.
type PriceChange struct {
	ProductID     int64     `json:"product_id"`
	URL           string    `json:"url"`
	Name          string    `json:"name"`
	OldPrice      *float64  `json:"old_price"`
	NewPrice      *float64  `json:"new_price"`
	OriginalPrice *float64  `json:"original_price"`
	Currency      Currency  `json:"currency"`
	CheckedAt     time.Time `json:"checked_at"`
}
