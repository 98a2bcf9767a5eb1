package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricescout/api/handler"
	"github.com/use-agent/pricescout/api/middleware"
	"github.com/use-agent/pricescout/cache"
	"github.com/use-agent/pricescout/config"
	"github.com/use-agent/pricescout/store"
)

// Scraper is what the router needs from scraper.Scraper.
type Scraper interface {
	handler.Scraper
	handler.StatsSource
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health is outside auth so monitoring probes always work. cc may be nil to
// disable result caching.
func NewRouter(sc Scraper, tr handler.Tracker, st store.Store, cc cache.Store, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(sc, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Extraction only
	protected.POST("/scrape", handler.Scrape(sc, cc))

	// Tracked products
	products := protected.Group("/products")
	products.GET("", handler.ListProducts(st))
	products.POST("", handler.TrackProduct(tr))
	products.GET("/:id", handler.GetProduct(st))
	products.POST("/:id/check-price", handler.CheckPrice(tr))
	products.GET("/:id/history", handler.History(st))

	return r
}
