package models

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether a product record was extracted.
	Success bool `json:"success"`

	// URL is the scraped page.
	URL string `json:"url,omitempty"`

	// Result is the extracted record; nil when Success is false.
	Result *ScrapeResult `json:"result,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// ProductResponse wraps a single product.
type ProductResponse struct {
	Success bool         `json:"success"`
	Product *Product     `json:"product,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ProductListResponse is the response for GET /api/v1/products.
type ProductListResponse struct {
	Success  bool         `json:"success"`
	Products []Product    `json:"products"`
	Total    int          `json:"total"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// HistoryResponse is the response for GET /api/v1/products/:id/history.
type HistoryResponse struct {
	Success   bool           `json:"success"`
	ProductID int64          `json:"product_id"`
	History   []PriceHistory `json:"history"`
	Error     *ErrorDetail   `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ScrapeMs is the time spent loading the page and extracting prices.
	ScrapeMs int64 `json:"scrape_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports the state of the shared browser session.
type SessionStats struct {
	State       string `json:"state"` // "idle", "ready", "closed"
	MaxPages    int    `json:"max_pages"`
	ActivePages int    `json:"active_pages"`
	Launches    int64  `json:"launches"`
	FetchMode   string `json:"fetch_mode"`
}

// CheckResponse is the response for POST /api/v1/products/:id/check-price.
type CheckResponse struct {
	Success       bool         `json:"success"`
	Product       *Product     `json:"product,omitempty"`
	PreviousPrice *float64     `json:"previous_price,omitempty"`
	Changed       bool         `json:"changed"`
	Error         *ErrorDetail `json:"error,omitempty"`
}

// ErrorResponse is returned by middleware that rejects a request before it
// reaches a handler.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
