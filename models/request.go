package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the product page to scrape. Required.
	URL string `json:"url" binding:"required,url"`

	// MaxAge enables the result cache: a cached result younger than MaxAge
	// milliseconds is returned without navigating. 0 disables caching.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// TrackRequest is the payload for POST /api/v1/products.
type TrackRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// HistoryQuery holds query parameters for GET /api/v1/products/:id/history.
type HistoryQuery struct {
	// Limit caps the number of rows returned. Default: 100. Max: 1000.
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// Defaults applies default values to unset fields.
func (q *HistoryQuery) Defaults() {
	if q.Limit == 0 {
		q.Limit = 100
	}
}
