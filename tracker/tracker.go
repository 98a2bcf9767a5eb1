// Package tracker ties the scraper to the product store: it adds products,
// re-checks their prices and announces changes.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/pricescout/models"
	"github.com/use-agent/pricescout/store"
)

// Scraper is the subset of scraper.Scraper the tracker needs.
type Scraper interface {
	IsValidTarget(url string) bool
	Scrape(ctx context.Context, url string) (*models.ScrapeResult, error)
}

// Notifier receives price change events. Implementations must not block for
// long; slow deliveries belong in their own goroutines.
type Notifier interface {
	Notify(ctx context.Context, change models.PriceChange) error
}

// CheckResult is the outcome of re-checking one product.
type CheckResult struct {
	Product       *models.Product `json:"product"`
	PreviousPrice *float64        `json:"previous_price"`
	Changed       bool            `json:"changed"`
}

// Service is safe for concurrent use.
type Service struct {
	scraper     Scraper
	store       store.Store
	notifiers   []Notifier
	concurrency int
	now         func() time.Time
}

// New creates a Service. concurrency bounds parallel scrapes in CheckAll.
func New(scraper Scraper, st store.Store, concurrency int, notifiers ...Notifier) *Service {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		scraper:     scraper,
		store:       st,
		notifiers:   notifiers,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Track scrapes url and starts tracking it. A page with a name but no price
// is tracked with empty prices.
func (s *Service) Track(ctx context.Context, url string) (*models.Product, error) {
	if !s.scraper.IsValidTarget(url) {
		return nil, models.NewScrapeError(models.ErrCodeInvalidDomain, "url is not on the supported site", nil)
	}

	if _, err := s.store.GetProductByURL(ctx, url); err == nil {
		return nil, models.NewScrapeError(models.ErrCodeProductExists, "product already being tracked", nil)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	res, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, err
	}

	product, err := s.store.UpsertProduct(ctx, url, res.Name, res.CurrentPrice, res.OriginalPrice, res.Currency)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.AppendPriceHistory(ctx, product.ID, res.CurrentPrice, res.OriginalPrice, res.Currency, s.now()); err != nil {
		return nil, err
	}

	slog.Info("product tracked", "id", product.ID, "url", url, "name", product.Name)
	return product, nil
}

// Check re-scrapes a tracked product, stores the observation and notifies
// when the current price moved. When the page shows no price this time, the
// product keeps its last known prices.
func (s *Service) Check(ctx context.Context, id int64) (*CheckResult, error) {
	prev, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.NewScrapeError(models.ErrCodeProductNotFound, "product not found", err)
		}
		return nil, err
	}

	res, err := s.scraper.Scrape(ctx, prev.URL)
	if err != nil {
		return nil, err
	}

	current, original, currency := res.CurrentPrice, res.OriginalPrice, res.Currency
	if current == nil {
		current, original, currency = prev.CurrentPrice, prev.OriginalPrice, prev.Currency
	}

	product, err := s.store.UpsertProduct(ctx, prev.URL, res.Name, current, original, currency)
	if err != nil {
		return nil, err
	}
	checkedAt := s.now()
	if _, err := s.store.AppendPriceHistory(ctx, id, res.CurrentPrice, res.OriginalPrice, res.Currency, checkedAt); err != nil {
		return nil, err
	}

	out := &CheckResult{Product: product, PreviousPrice: prev.CurrentPrice}
	if res.CurrentPrice != nil && !samePrice(prev.CurrentPrice, res.CurrentPrice) {
		out.Changed = true
		s.notify(ctx, models.PriceChange{
			ProductID:     id,
			URL:           product.URL,
			Name:          product.Name,
			OldPrice:      prev.CurrentPrice,
			NewPrice:      res.CurrentPrice,
			OriginalPrice: res.OriginalPrice,
			Currency:      res.Currency,
			CheckedAt:     checkedAt,
		})
	}
	return out, nil
}

// CheckAll re-checks every product with bounded concurrency and returns how
// many checks succeeded and failed. Failures are logged, not returned.
func (s *Service) CheckAll(ctx context.Context) (ok, failed int, err error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return 0, 0, err
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)
	for _, p := range products {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ok, failed, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(p models.Product) {
			defer wg.Done()
			defer func() { <-sem }()

			_, cerr := s.Check(ctx, p.ID)
			mu.Lock()
			defer mu.Unlock()
			if cerr != nil {
				failed++
				slog.Warn("price check failed", "id", p.ID, "url", p.URL, "code", models.CodeOf(cerr), "error", cerr)
				return
			}
			ok++
		}(p)
	}
	wg.Wait()

	slog.Info("price check run complete", "products", len(products), "ok", ok, "failed", failed)
	return ok, failed, nil
}

func (s *Service) notify(ctx context.Context, change models.PriceChange) {
	slog.Info("price changed",
		"id", change.ProductID,
		"old", deref(change.OldPrice),
		"new", deref(change.NewPrice),
		"currency", change.Currency,
	)
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, change); err != nil {
			slog.Warn("price change notification failed", "error", err)
		}
	}
}

func samePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
