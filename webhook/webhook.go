// Package webhook delivers signed price change events to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/pricescout/models"
)

// EventPriceChanged is the only event type emitted today.
const EventPriceChanged = "price.changed"

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Pricescout-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string             `json:"type"`
	Timestamp int64              `json:"timestamp"`
	Data      models.PriceChange `json:"data"`
}

// Sign returns the header value for body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Notifier posts price change events to one URL. Deliveries run in the
// background with retries, so Notify never blocks on the network.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
}

// NewNotifier creates a Notifier. Retry intervals are 1s, 5s and 30s.
func NewNotifier(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Notify schedules delivery of change and returns immediately.
func (n *Notifier) Notify(_ context.Context, change models.PriceChange) error {
	event := &Event{
		Type:      EventPriceChanged,
		Timestamp: change.CheckedAt.Unix(),
		Data:      change,
	}
	go n.deliverWithRetry(event)
	return nil
}

// Deliver sends event synchronously.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pricescout-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) deliverWithRetry(event *Event) {
	for attempt, delay := range n.delays {
		if delay > 0 {
			time.Sleep(delay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := n.Deliver(ctx, event)
		cancel()
		if err == nil {
			slog.Info("webhook delivered",
				"url", n.url,
				"event", event.Type,
				"product_id", event.Data.ProductID,
				"attempt", attempt+1,
			)
			return
		}
		slog.Warn("webhook delivery failed",
			"url", n.url,
			"event", event.Type,
			"product_id", event.Data.ProductID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	slog.Error("webhook delivery exhausted all retries",
		"url", n.url,
		"event", event.Type,
		"product_id", event.Data.ProductID,
	)
}
