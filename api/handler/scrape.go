package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricescout/cache"
	"github.com/use-agent/pricescout/models"
)

// Scraper extracts a product record from a page.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.ScrapeResult, error)
}

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate request.
//  2. Cache lookup when max_age > 0.
//  3. Scraper.Scrape (records scrape_ms).
//  4. Cache store, fill Timing, return 200.
func Scrape(sc Scraper, cc cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error:   invalidInput(err.Error()),
			})
			return
		}
		maxAge := time.Duration(req.MaxAge) * time.Millisecond
		useCache := cc != nil && maxAge > 0

		// ── 2. Cache lookup ─────────────────────────────────────────
		if useCache {
			if entry, hit := cc.Get(cache.Key(req.URL), maxAge); hit {
				c.JSON(http.StatusOK, models.ScrapeResponse{
					Success:     true,
					URL:         req.URL,
					Result:      entry.Result,
					CacheStatus: "hit",
					Timing:      models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()},
				})
				return
			}
		}

		// ── 3. Scrape ───────────────────────────────────────────────
		scrapeStart := time.Now()
		result, err := sc.Scrape(c.Request.Context(), req.URL)
		timing := models.TimingInfo{
			TotalMs:  time.Since(totalStart).Milliseconds(),
			ScrapeMs: time.Since(scrapeStart).Milliseconds(),
		}
		if err != nil {
			status, detail := errorDetail(err)
			c.JSON(status, models.ScrapeResponse{
				Success: false,
				URL:     req.URL,
				Error:   detail,
				Timing:  timing,
			})
			return
		}

		// ── 4. Cache store and respond ──────────────────────────────
		resp := models.ScrapeResponse{
			Success: true,
			URL:     req.URL,
			Result:  result,
			Timing:  timing,
		}
		if useCache {
			cc.Set(cache.Key(req.URL), result)
			resp.CacheStatus = "miss"
		}
		c.JSON(http.StatusOK, resp)
	}
}
