// Package store persists tracked products and their price history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/use-agent/pricescout/models"
)

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is implemented by the Postgres and in-memory stores.
type Store interface {
	// UpsertProduct inserts a product or, if url is already tracked,
	// updates its name and prices.
	UpsertProduct(ctx context.Context, url, name string, current, original *float64, currency models.Currency) (*models.Product, error)

	// AppendPriceHistory records one observation.
	AppendPriceHistory(ctx context.Context, productID int64, current, original *float64, currency models.Currency, at time.Time) (*models.PriceHistory, error)

	// ListProducts returns every product, newest first.
	ListProducts(ctx context.Context) ([]models.Product, error)

	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	GetProductByURL(ctx context.Context, url string) (*models.Product, error)

	// History returns at most limit observations, newest first.
	History(ctx context.Context, productID int64, limit int) ([]models.PriceHistory, error)

	Close() error
}

const defaultHistoryLimit = 100
