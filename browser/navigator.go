package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/pricescout/config"
	"github.com/use-agent/pricescout/engine"
	"github.com/use-agent/pricescout/models"
)

// markerSelector is the element whose appearance signals that the product
// template has rendered.
const markerSelector = "h1"

// Navigator opens one ephemeral tab per load on the shared session. Tabs run
// in parallel up to MaxPages; further loads wait for a slot or their context.
type Navigator struct {
	session    *Session
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig

	slots  rod.Pool[rod.Page]
	active atomic.Int32
}

// NewNavigator creates a Navigator over session.
func NewNavigator(session *Session, browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) *Navigator {
	if browserCfg.MaxPages <= 0 {
		browserCfg.MaxPages = 1
	}
	return &Navigator{
		session:    session,
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		slots:      rod.NewPagePool(browserCfg.MaxPages),
	}
}

func (n *Navigator) Name() string { return "browser" }

// Load navigates a fresh tab to targetURL and returns it once the DOM is
// ready. The caller must Release the page.
//
// Lifecycle:
//
//  1. Session       – ensure a live browser (may launch)
//  2. Slot          – wait for a free page slot or ctx
//  3. Open tab      – released on every failure path below
//  4. Identity      – user agent, extra headers, stealth (before navigation!)
//  5. Hijack        – block heavy resources and trackers (before navigation!)
//  6. Navigate      – wait for DOMContentLoaded under NavigationTimeout
//  7. Marker        – soft wait for the product heading
func (n *Navigator) Load(ctx context.Context, targetURL string) (engine.Page, error) {
	// ── 1. Session ────────────────────────────────────────────────────
	browser, err := n.session.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}

	// ── 2. Slot ───────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		return nil, engine.Categorize(ctx.Err(), "waiting for a free page")
	case <-n.slots:
	}
	n.active.Add(1)

	// ── 3. Open tab ───────────────────────────────────────────────────
	tab, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		n.freeSlot()
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "failed to open page", err)
	}

	// Reads outlive the load deadline and end at Release. Each one is still
	// bounded by the selector timeout.
	readCtx, readCancel := context.WithCancel(context.WithoutCancel(ctx))

	var router *rod.HijackRouter
	page := &Page{
		page:       tab.Context(readCtx),
		selTimeout: n.scraperCfg.SelectorTimeout,
	}
	page.release = func() {
		readCancel()
		if router != nil {
			_ = router.Stop()
		}
		// The original handle is not bound to the scrape context, so
		// closing still works after a timeout.
		if err := tab.Close(); err != nil {
			slog.Debug("page close failed", "error", err)
		}
		n.freeSlot()
	}

	// ── 4. Identity ───────────────────────────────────────────────────
	n.applyIdentity(tab, targetURL)

	// ── 5. Hijack ─────────────────────────────────────────────────────
	router = setupHijack(tab, n.scraperCfg.BlockedResourceTypes, n.scraperCfg.BlockAds)

	// ── 6. Navigate ───────────────────────────────────────────────────
	if err := n.navigate(ctx, tab, targetURL); err != nil {
		page.Release()
		return nil, err
	}

	// ── 7. Marker ─────────────────────────────────────────────────────
	n.waitMarker(ctx, tab, targetURL)

	return page, nil
}

func (n *Navigator) freeSlot() {
	n.active.Add(-1)
	n.slots.Put(nil)
}

func (n *Navigator) applyIdentity(tab *rod.Page, targetURL string) {
	if ua := n.browserCfg.UserAgent; ua != "" {
		if err := tab.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      ua,
			AcceptLanguage: "en-GB,en;q=0.9",
		}); err != nil {
			slog.Warn("user agent override failed", "error", err)
		}
	}

	headers := map[string]string{"Accept-Language": "en-GB,en;q=0.9"}
	if u, err := url.Parse(targetURL); err == nil {
		headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(tab)

	if n.browserCfg.Stealth {
		if _, err := tab.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
}

// navigate waits for DOMContentLoaded only; images and late scripts are not
// awaited. If the lifecycle event is missed, document.readyState is polled.
func (n *Navigator) navigate(ctx context.Context, tab *rod.Page, targetURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, n.scraperCfg.NavigationTimeout)
	defer cancel()
	p := tab.Context(navCtx)

	// Registered before Navigate so the event cannot be missed.
	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(targetURL); err != nil {
		return engine.Categorize(err, "navigation to target URL failed")
	}
	wait()

	if err := waitReadyState(navCtx, p); err != nil {
		return engine.Categorize(err, "page did not become interactive")
	}
	return nil
}

// waitReadyState polls until the document is interactive or complete.
func waitReadyState(ctx context.Context, p *rod.Page) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		res, err := p.Eval(`() => document.readyState`)
		if err == nil {
			if state := res.Value.Str(); state == "interactive" || state == "complete" {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("%w: %v", ctx.Err(), err)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitMarker gives client-side templates a moment to render the product
// heading. Timing out only logs.
func (n *Navigator) waitMarker(ctx context.Context, tab *rod.Page, targetURL string) {
	p := tab.Context(ctx).Timeout(n.scraperCfg.MarkerTimeout)
	defer p.CancelTimeout()
	if _, err := p.Element(markerSelector); err != nil {
		slog.Warn("product marker did not appear, extracting anyway",
			"url", targetURL,
			"selector", markerSelector,
			"error", err,
		)
	}
}

// Stats reports the session and page slot usage.
func (n *Navigator) Stats() models.SessionStats {
	return models.SessionStats{
		State:       n.session.State(),
		MaxPages:    n.browserCfg.MaxPages,
		ActivePages: int(n.active.Load()),
		Launches:    n.session.Launches(),
	}
}

// Shutdown closes the session. Loads in flight fail; later loads are refused.
func (n *Navigator) Shutdown() error {
	return n.session.Close()
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
