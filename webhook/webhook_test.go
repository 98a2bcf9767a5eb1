package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricescout/models"
)

func change() models.PriceChange {
	old, now := 313.0, 280.0
	return models.PriceChange{
		ProductID: 7,
		URL:       "https://www.paulsmith.com/p/blazer",
		Name:      "Classic Blazer",
		OldPrice:  &old,
		NewPrice:  &now,
		Currency:  models.GBP,
		CheckedAt: time.Unix(1700000000, 0),
	}
}

func TestDeliver_Signed(t *testing.T) {
	var gotSig string
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		assert.Equal(t, Sign("s3cret", body), gotSig)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "s3cret")
	err := n.Deliver(context.Background(), &Event{Type: EventPriceChanged, Timestamp: 1, Data: change()})
	require.NoError(t, err)
	assert.Contains(t, gotSig, "sha256=")
	assert.Equal(t, EventPriceChanged, got.Type)
	assert.Equal(t, int64(7), got.Data.ProductID)
	assert.Equal(t, 280.0, *got.Data.NewPrice)
}

func TestDeliver_Unsigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	require.NoError(t, NewNotifier(srv.URL, "").Deliver(context.Background(), &Event{Type: EventPriceChanged}))
}

func TestDeliver_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewNotifier(srv.URL, "").Deliver(context.Background(), &Event{})
	assert.ErrorContains(t, err, "502")
}

func TestNotify_Retries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(srv.URL, "k")
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond, time.Millisecond}

	require.NoError(t, n.Notify(context.Background(), change()))
	assert.Eventually(t, func() bool { return hits.Load() == 3 }, time.Second, 5*time.Millisecond)
}
