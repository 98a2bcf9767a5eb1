package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/use-agent/pricescout/models"
)

// Postgres is a Store backed by PostgreSQL through lib/pq.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	slog.Info("connected to database")
	return &Postgres{db: db}, nil
}

// Migrate creates the tables if they don't exist and adds columns that
// older deployments lack.
func (p *Postgres) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id SERIAL PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			current_price DECIMAL(10,2),
			currency VARCHAR(3) DEFAULT 'GBP',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS price_history (
			id SERIAL PRIMARY KEY,
			product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			price DECIMAL(10,2),
			currency VARCHAR(3) DEFAULT 'GBP',
			checked_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`ALTER TABLE products ADD COLUMN IF NOT EXISTS original_price DECIMAL(10,2)`,
		`ALTER TABLE price_history ADD COLUMN IF NOT EXISTS original_price DECIMAL(10,2)`,
		`CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history (product_id, checked_at DESC)`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

const productColumns = `id, url, name, current_price, original_price, currency, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (*models.Product, error) {
	var p models.Product
	var currency string
	err := row.Scan(
		&p.ID, &p.URL, &p.Name,
		&p.CurrentPrice, &p.OriginalPrice, &currency,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Currency = models.Currency(currency)
	return &p, nil
}

func (p *Postgres) UpsertProduct(ctx context.Context, url, name string, current, original *float64, currency models.Currency) (*models.Product, error) {
	query := `
		INSERT INTO products (url, name, current_price, original_price, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (url) DO UPDATE
		SET name = EXCLUDED.name,
			current_price = EXCLUDED.current_price,
			original_price = EXCLUDED.original_price,
			currency = EXCLUDED.currency,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + productColumns

	prod, err := scanProduct(p.db.QueryRowContext(ctx, query,
		url, name, current, original, string(currency), time.Now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("store: upsert product: %w", err)
	}
	return prod, nil
}

func (p *Postgres) AppendPriceHistory(ctx context.Context, productID int64, current, original *float64, currency models.Currency, at time.Time) (*models.PriceHistory, error) {
	query := `
		INSERT INTO price_history (product_id, price, original_price, currency, checked_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, product_id, price, original_price, currency, checked_at
	`

	h, err := scanHistory(p.db.QueryRowContext(ctx, query,
		productID, current, original, string(currency), at.UTC()))
	if err != nil {
		return nil, fmt.Errorf("store: append price history: %w", err)
	}
	return h, nil
}

func scanHistory(row scanner) (*models.PriceHistory, error) {
	var h models.PriceHistory
	var currency string
	if err := row.Scan(&h.ID, &h.ProductID, &h.Price, &h.OriginalPrice, &currency, &h.CheckedAt); err != nil {
		return nil, err
	}
	h.Currency = models.Currency(currency)
	return &h, nil
}

func (p *Postgres) ListProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan product: %w", err)
		}
		products = append(products, *prod)
	}
	return products, rows.Err()
}

func (p *Postgres) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return p.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (p *Postgres) GetProductByURL(ctx context.Context, url string) (*models.Product, error) {
	return p.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE url = $1`, url)
}

func (p *Postgres) getOne(ctx context.Context, query string, arg any) (*models.Product, error) {
	prod, err := scanProduct(p.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get product: %w", err)
	}
	return prod, nil
}

func (p *Postgres) History(ctx context.Context, productID int64, limit int) ([]models.PriceHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if _, err := p.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, product_id, price, original_price, currency, checked_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY checked_at DESC, id DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: get price history: %w", err)
	}
	defer rows.Close()

	history := []models.PriceHistory{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan price history: %w", err)
		}
		history = append(history, *h)
	}
	return history, rows.Err()
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
