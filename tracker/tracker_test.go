package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricescout/models"
	"github.com/use-agent/pricescout/store"
)

type fakeScraper struct {
	mu      sync.Mutex
	results map[string]*models.ScrapeResult
	err     error
	calls   int
}

func (f *fakeScraper) IsValidTarget(url string) bool {
	return strings.Contains(strings.ToLower(url), "paulsmith.com")
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*models.ScrapeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.results[url]
	if !ok {
		return nil, models.NewScrapeError(models.ErrCodeNameNotFound, "no name", nil)
	}
	out := *r
	return &out, nil
}

func (f *fakeScraper) set(url string, r *models.ScrapeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[url] = r
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []models.PriceChange
}

func (n *recordingNotifier) Notify(_ context.Context, c models.PriceChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
	return nil
}

func p(v float64) *float64 { return &v }

const blazerURL = "https://www.paulsmith.com/p/blazer"

func newFixture() (*Service, *fakeScraper, *store.Memory, *recordingNotifier) {
	sc := &fakeScraper{results: map[string]*models.ScrapeResult{
		blazerURL: {Name: "Classic Blazer", CurrentPrice: p(313), Currency: models.GBP},
	}}
	st := store.NewMemory()
	n := &recordingNotifier{}
	return New(sc, st, 2, n), sc, st, n
}

func TestTrack(t *testing.T) {
	svc, _, st, _ := newFixture()
	ctx := context.Background()

	prod, err := svc.Track(ctx, blazerURL)
	require.NoError(t, err)
	assert.Equal(t, "Classic Blazer", prod.Name)

	hist, err := st.History(ctx, prod.ID, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 313.0, *hist[0].Price)

	_, err = svc.Track(ctx, blazerURL)
	assert.Equal(t, models.ErrCodeProductExists, models.CodeOf(err))
}

func TestTrack_RejectsOffTarget(t *testing.T) {
	svc, sc, _, _ := newFixture()
	_, err := svc.Track(context.Background(), "https://example.com/p/1")
	assert.Equal(t, models.ErrCodeInvalidDomain, models.CodeOf(err))
	assert.Zero(t, sc.calls)
}

func TestTrack_NameOnly(t *testing.T) {
	svc, sc, _, _ := newFixture()
	url := "https://www.paulsmith.com/p/tee"
	sc.set(url, &models.ScrapeResult{Name: "Plain Tee", Currency: models.GBP})

	prod, err := svc.Track(context.Background(), url)
	require.NoError(t, err)
	assert.Nil(t, prod.CurrentPrice)
}

func TestTrack_ScrapeFailure(t *testing.T) {
	svc, _, st, _ := newFixture()
	_, err := svc.Track(context.Background(), "https://www.paulsmith.com/p/gone")
	assert.Equal(t, models.ErrCodeNameNotFound, models.CodeOf(err))

	list, _ := st.ListProducts(context.Background())
	assert.Empty(t, list)
}

func TestCheck_PriceDrop(t *testing.T) {
	svc, sc, st, n := newFixture()
	ctx := context.Background()
	prod, err := svc.Track(ctx, blazerURL)
	require.NoError(t, err)

	sc.set(blazerURL, &models.ScrapeResult{Name: "Classic Blazer", CurrentPrice: p(280), OriginalPrice: p(313), Currency: models.GBP})
	res, err := svc.Check(ctx, prod.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 313.0, *res.PreviousPrice)
	assert.Equal(t, 280.0, *res.Product.CurrentPrice)

	require.Len(t, n.changes, 1)
	assert.Equal(t, 313.0, *n.changes[0].OldPrice)
	assert.Equal(t, 280.0, *n.changes[0].NewPrice)

	hist, _ := st.History(ctx, prod.ID, 10)
	assert.Len(t, hist, 2)
}

func TestCheck_Unchanged(t *testing.T) {
	svc, _, _, n := newFixture()
	ctx := context.Background()
	prod, err := svc.Track(ctx, blazerURL)
	require.NoError(t, err)

	res, err := svc.Check(ctx, prod.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, n.changes)
}

func TestCheck_MissingPriceKeepsLastKnown(t *testing.T) {
	svc, sc, st, n := newFixture()
	ctx := context.Background()
	prod, err := svc.Track(ctx, blazerURL)
	require.NoError(t, err)

	sc.set(blazerURL, &models.ScrapeResult{Name: "Classic Blazer", Currency: models.GBP})
	res, err := svc.Check(ctx, prod.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 313.0, *res.Product.CurrentPrice)
	assert.Empty(t, n.changes)

	hist, _ := st.History(ctx, prod.ID, 1)
	require.Len(t, hist, 1)
	assert.Nil(t, hist[0].Price, "the observation itself is recorded as seen")
}

func TestCheck_NotFound(t *testing.T) {
	svc, _, _, _ := newFixture()
	_, err := svc.Check(context.Background(), 42)
	assert.Equal(t, models.ErrCodeProductNotFound, models.CodeOf(err))
}

func TestCheckAll(t *testing.T) {
	svc, sc, _, n := newFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		url := fmt.Sprintf("https://www.paulsmith.com/p/%d", i)
		sc.set(url, &models.ScrapeResult{Name: "Item", CurrentPrice: p(100), Currency: models.GBP})
		_, err := svc.Track(ctx, url)
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		sc.set(fmt.Sprintf("https://www.paulsmith.com/p/%d", i), &models.ScrapeResult{Name: "Item", CurrentPrice: p(90), Currency: models.GBP})
	}

	ok, failed, err := svc.CheckAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, ok)
	assert.Zero(t, failed)
	assert.Len(t, n.changes, 5)
}

func TestCheckAll_CountsFailures(t *testing.T) {
	svc, sc, _, _ := newFixture()
	ctx := context.Background()
	_, err := svc.Track(ctx, blazerURL)
	require.NoError(t, err)

	sc.err = models.NewScrapeError(models.ErrCodeTimeout, "slow", errors.New("deadline"))
	ok, failed, err := svc.CheckAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, ok)
	assert.Equal(t, 1, failed)
}
