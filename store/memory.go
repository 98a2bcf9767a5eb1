package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/use-agent/pricescout/models"
)

// Memory is a Store held in process memory, used when no database is
// configured. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	nextID   int64
	nextHist int64
	products map[int64]*models.Product
	byURL    map[string]int64
	history  map[int64][]models.PriceHistory
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		products: make(map[int64]*models.Product),
		byURL:    make(map[string]int64),
		history:  make(map[int64][]models.PriceHistory),
	}
}

func (m *Memory) UpsertProduct(_ context.Context, url, name string, current, original *float64, currency models.Currency) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if id, ok := m.byURL[url]; ok {
		p := m.products[id]
		p.Name = name
		p.CurrentPrice = copyFloat(current)
		p.OriginalPrice = copyFloat(original)
		p.Currency = currency
		p.UpdatedAt = now
		out := *p
		return &out, nil
	}

	m.nextID++
	p := &models.Product{
		ID:            m.nextID,
		URL:           url,
		Name:          name,
		CurrentPrice:  copyFloat(current),
		OriginalPrice: copyFloat(original),
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.products[p.ID] = p
	m.byURL[url] = p.ID
	out := *p
	return &out, nil
}

func (m *Memory) AppendPriceHistory(_ context.Context, productID int64, current, original *float64, currency models.Currency, at time.Time) (*models.PriceHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[productID]; !ok {
		return nil, ErrNotFound
	}
	m.nextHist++
	h := models.PriceHistory{
		ID:            m.nextHist,
		ProductID:     productID,
		Price:         copyFloat(current),
		OriginalPrice: copyFloat(original),
		Currency:      currency,
		CheckedAt:     at.UTC(),
	}
	m.history[productID] = append(m.history[productID], h)
	return &h, nil
}

func (m *Memory) ListProducts(context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *Memory) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *Memory) GetProductByURL(ctx context.Context, url string) (*models.Product, error) {
	m.mu.RLock()
	id, ok := m.byURL[url]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.GetProduct(ctx, id)
}

func (m *Memory) History(_ context.Context, productID int64, limit int) ([]models.PriceHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.products[productID]; !ok {
		return nil, ErrNotFound
	}
	rows := m.history[productID]
	out := make([]models.PriceHistory, 0, min(limit, len(rows)))
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
