// Package scraper is the extraction engine boundary: it validates the target,
// loads the page through a backend and turns it into a ScrapeResult.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/pricescout/config"
	"github.com/use-agent/pricescout/engine"
	"github.com/use-agent/pricescout/extractor"
	"github.com/use-agent/pricescout/models"
	"github.com/use-agent/pricescout/price"
)

// Scraper is safe for concurrent use. It is owned by the application root,
// which must call Shutdown exactly when the process tears down.
type Scraper struct {
	cfg     config.ScraperConfig
	loader  engine.Loader
	locator *extractor.Locator

	stats     func() models.SessionStats
	closers   []func() error
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLocator replaces the default strategy cascade.
func WithLocator(l *extractor.Locator) Option {
	return func(s *Scraper) { s.locator = l }
}

// WithStats sets the source of session statistics.
func WithStats(fn func() models.SessionStats) Option {
	return func(s *Scraper) { s.stats = fn }
}

// OnShutdown registers a release function run by Shutdown, in order.
func OnShutdown(fn func() error) Option {
	return func(s *Scraper) { s.closers = append(s.closers, fn) }
}

// New creates a Scraper that loads pages through loader.
func New(cfg config.ScraperConfig, loader engine.Loader, opts ...Option) *Scraper {
	s := &Scraper{
		cfg:     cfg,
		loader:  loader,
		locator: extractor.NewLocator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsValidTarget reports whether rawURL contains the target domain,
// case-insensitively.
func (s *Scraper) IsValidTarget(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), strings.ToLower(s.cfg.TargetDomain))
}

// Scrape extracts the product name and prices from rawURL.
//
// The result is nil exactly when err is non-nil, and err is then always a
// *models.ScrapeError. A result with nil prices means the page had a name
// but no recognisable price.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (result *models.ScrapeResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scrape panicked", "url", rawURL, "panic", r)
			result = nil
			err = models.NewScrapeError(models.ErrCodeInternal, "internal extraction failure", fmt.Errorf("%v", r))
		}
	}()

	// ── 1. Domain guard (no navigation) ──────────────────────────────
	if s.closed.Load() {
		return nil, models.NewScrapeError(models.ErrCodeSessionClosed, "scraper is shut down", nil)
	}
	if !s.IsValidTarget(rawURL) {
		slog.Warn("scrape rejected: off-target domain", "url", rawURL, "target", s.cfg.TargetDomain)
		return nil, models.NewScrapeError(models.ErrCodeInvalidDomain,
			fmt.Sprintf("url is not on %s", s.cfg.TargetDomain), nil)
	}

	// ── 2. Load (bounded by ScrapeTimeout) ──────────────────────────
	loadCtx := ctx
	if s.cfg.ScrapeTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, s.cfg.ScrapeTimeout)
		defer cancel()
	}
	page, err := s.loader.Load(loadCtx, rawURL)
	if err != nil {
		se := engine.Categorize(err, "page load failed")
		slog.Warn("scrape failed", "url", rawURL, "code", se.Code, "error", err)
		return nil, se
	}
	defer page.Release()

	// ── 3. Name ───────────────────────────────────────────────────────
	name := extractor.ExtractName(page)
	if name == "" {
		slog.Warn("scrape failed: no product name", "url", rawURL)
		return nil, models.NewScrapeError(models.ErrCodeNameNotFound, "no product name on page", nil)
	}

	// ── 4. Prices (bounded by ExtractTimeout) ───────────────────────
	// Once a name is known the call always returns a result; strategies cut
	// short by the deadline just leave their slots empty.
	extractCtx := ctx
	if s.cfg.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, s.cfg.ExtractTimeout)
		defer cancel()
	}
	content, cerr := page.Content()
	if cerr != nil {
		slog.Warn("page content unavailable, using selectors only", "url", rawURL, "error", cerr)
	}
	found := s.locator.Locate(extractCtx, extractor.NewPage(page, content))
	if err := extractCtx.Err(); err != nil {
		slog.Warn("price extraction cut short, returning partial result",
			"url", rawURL,
			"error", err,
			"sale_found", found.Sale != nil,
			"original_found", found.Original != nil,
		)
	}

	res := price.Disambiguate(found.Sale, found.Original)
	result = &models.ScrapeResult{
		Name:          name,
		CurrentPrice:  res.CurrentPrice(),
		OriginalPrice: res.OriginalPrice(),
		Currency:      res.Currency,
	}
	if res.Current != nil {
		result.CurrentSource = res.Current.Strategy
		result.LowConfidence = extractor.LowConfidence(res.Current.Strategy)
	}
	if res.Original != nil {
		result.OriginalSource = res.Original.Strategy
	}

	slog.Info("scrape complete",
		"url", rawURL,
		"name", name,
		"current", derefOrNil(result.CurrentPrice),
		"original", derefOrNil(result.OriginalPrice),
		"currency", result.Currency,
		"source", result.CurrentSource,
		"low_confidence", result.LowConfidence,
		"duration", time.Since(start),
	)
	return result, nil
}

// Shutdown releases the backend. Only the first call does any work; later
// scrapes are refused with SESSION_CLOSED.
func (s *Scraper) Shutdown() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		for _, fn := range s.closers {
			if err := fn(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// Stats reports backend statistics for the health endpoint.
func (s *Scraper) Stats() models.SessionStats {
	var st models.SessionStats
	if s.stats != nil {
		st = s.stats()
	}
	if s.closed.Load() {
		st.State = "closed"
	}
	st.FetchMode = s.loader.Name()
	return st
}

func derefOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
