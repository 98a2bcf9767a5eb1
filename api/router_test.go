package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricescout/cache"
	"github.com/use-agent/pricescout/config"
	"github.com/use-agent/pricescout/models"
	"github.com/use-agent/pricescout/store"
	"github.com/use-agent/pricescout/tracker"
)

const (
	testKey    = "k-test"
	productURL = "https://www.paulsmith.com/uk/mens/blazer-123"
)

type fakeScraper struct {
	calls  atomic.Int32
	result *models.ScrapeResult
	err    error
}

func (f *fakeScraper) IsValidTarget(url string) bool {
	return strings.Contains(strings.ToLower(url), "paulsmith.com")
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*models.ScrapeResult, error) {
	f.calls.Add(1)
	if !f.IsValidTarget(url) {
		return nil, models.NewScrapeError(models.ErrCodeInvalidDomain, "off target", nil)
	}
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

func (f *fakeScraper) Stats() models.SessionStats {
	return models.SessionStats{State: "ready", MaxPages: 4, FetchMode: "browser"}
}

func ptr(v float64) *float64 { return &v }

type fixture struct {
	router  http.Handler
	scraper *fakeScraper
	store   *store.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Load()
	cfg.Server.Mode = "test"
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{testKey}
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000}

	sc := &fakeScraper{result: &models.ScrapeResult{
		Name: "Classic Blazer", CurrentPrice: ptr(280), OriginalPrice: ptr(313), Currency: models.GBP,
	}}
	st := store.NewMemory()
	cc := cache.NewMemory(10, time.Hour)
	t.Cleanup(cc.Close)

	tr := tracker.New(sc, st, 1)
	return &fixture{
		router:  NewRouter(sc, tr, st, cc, cfg, time.Now()),
		scraper: sc,
		store:   st,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth_NoAuth(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "browser", resp.SessionStats.FetchMode)
}

func TestAuth(t *testing.T) {
	f := newFixture(t)
	body := `{"url":"` + productURL + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(body))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer wrong")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decode[models.ErrorResponse](t, w)
	assert.Equal(t, models.ErrCodeUnauthorized, resp.Error.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testKey)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScrape(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/scrape", `{"url":"`+productURL+`"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.ScrapeResponse](t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "Classic Blazer", resp.Result.Name)
	assert.Equal(t, 280.0, *resp.Result.CurrentPrice)
	assert.Empty(t, resp.CacheStatus)
}

func TestScrape_Cache(t *testing.T) {
	f := newFixture(t)
	body := `{"url":"` + productURL + `","max_age":60000}`

	first := decode[models.ScrapeResponse](t, f.do(t, http.MethodPost, "/api/v1/scrape", body))
	second := decode[models.ScrapeResponse](t, f.do(t, http.MethodPost, "/api/v1/scrape", body))

	assert.Equal(t, "miss", first.CacheStatus)
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, first.Result, second.Result)
	assert.Equal(t, int32(1), f.scraper.calls.Load())
}

func TestScrape_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"missing url", `{}`, nil, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"off target", `{"url":"https://example.com/p/1"}`, nil, http.StatusBadRequest, models.ErrCodeInvalidDomain},
		{"no name", `{"url":"` + productURL + `"}`, models.NewScrapeError(models.ErrCodeNameNotFound, "no name", nil), http.StatusUnprocessableEntity, models.ErrCodeNameNotFound},
		{"timeout", `{"url":"` + productURL + `"}`, models.NewScrapeError(models.ErrCodeTimeout, "slow", nil), http.StatusGatewayTimeout, models.ErrCodeTimeout},
		{"navigation", `{"url":"` + productURL + `"}`, models.NewScrapeError(models.ErrCodeNavigation, "reset", nil), http.StatusBadGateway, models.ErrCodeNavigation},
		{"closed", `{"url":"` + productURL + `"}`, models.NewScrapeError(models.ErrCodeSessionClosed, "closed", nil), http.StatusServiceUnavailable, models.ErrCodeSessionClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.scraper.err = tt.err
			w := f.do(t, http.MethodPost, "/api/v1/scrape", tt.body)

			assert.Equal(t, tt.status, w.Code)
			resp := decode[models.ScrapeResponse](t, w)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Result)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestProducts_Lifecycle(t *testing.T) {
	f := newFixture(t)

	// Track
	w := f.do(t, http.MethodPost, "/api/v1/products", `{"url":"`+productURL+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.ProductResponse](t, w)
	require.NotNil(t, created.Product)
	id := created.Product.ID

	// Duplicate
	w = f.do(t, http.MethodPost, "/api/v1/products", `{"url":"`+productURL+`"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	// List
	list := decode[models.ProductListResponse](t, f.do(t, http.MethodGet, "/api/v1/products", ""))
	assert.Equal(t, 1, list.Total)

	// Get
	path := "/api/v1/products/" + strconv.FormatInt(id, 10)
	got := decode[models.ProductResponse](t, f.do(t, http.MethodGet, path, ""))
	assert.Equal(t, "Classic Blazer", got.Product.Name)

	// Price drop
	f.scraper.result.CurrentPrice = ptr(250)
	w = f.do(t, http.MethodPost, path+"/check-price", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	check := decode[models.CheckResponse](t, w)
	assert.True(t, check.Changed)
	assert.Equal(t, 280.0, *check.PreviousPrice)
	assert.Equal(t, 250.0, *check.Product.CurrentPrice)

	// History, newest first
	hist := decode[models.HistoryResponse](t, f.do(t, http.MethodGet, path+"/history?limit=1", ""))
	require.Len(t, hist.History, 1)
	assert.Equal(t, 250.0, *hist.History[0].Price)
	hist = decode[models.HistoryResponse](t, f.do(t, http.MethodGet, path+"/history", ""))
	assert.Len(t, hist.History, 2)
}

func TestProducts_NotFoundAndBadInput(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/products/42", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/products/42/check-price", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/products/42/history", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/products/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/products/1/history?limit=5000", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/products", `{"url":"not a url"}`).Code)
}

func TestRateLimit(t *testing.T) {
	cfg := config.Load()
	cfg.Server.Mode = "test"
	cfg.Auth.Enabled = false
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1}
	sc := &fakeScraper{result: &models.ScrapeResult{Name: "x", Currency: models.GBP}}
	st := store.NewMemory()
	router := NewRouter(sc, tracker.New(sc, st, 1), st, nil, cfg, time.Now())

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send().Code)
	w := send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}
