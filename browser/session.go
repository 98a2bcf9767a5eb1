// Package browser owns the headless Chromium session and turns rod pages into
// extractor documents.
package browser

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/use-agent/pricescout/config"
	"github.com/use-agent/pricescout/models"
)

// Session states reported in stats.
const (
	StateIdle   = "idle"
	StateReady  = "ready"
	StateClosed = "closed"
)

const healthTimeout = 2 * time.Second

// Session is the process-wide browser handle. It is created lazily, probed
// before reuse and recreated when the browser has gone away. Only the
// check-and-create sequence is serialized; pages run in parallel.
type Session struct {
	cfg config.BrowserConfig

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool

	state    atomic.Value // string, readable without mu
	launches atomic.Int64

	// launch, probe and release are swapped in tests.
	launch  func(ctx context.Context) (*rod.Browser, *launcher.Launcher, error)
	probe   func(b *rod.Browser) error
	release func(b *rod.Browser, l *launcher.Launcher)
}

// NewSession returns an idle session. Nothing is launched until EnsureReady.
func NewSession(cfg config.BrowserConfig) *Session {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 30 * time.Second
	}
	s := &Session{cfg: cfg}
	s.launch = s.launchBrowser
	s.probe = probeBrowser
	s.release = releaseBrowser
	s.state.Store(StateIdle)
	return s
}

func (s *Session) closedErr() error {
	return models.NewScrapeError(models.ErrCodeSessionClosed, "browser session is shut down", nil)
}

// EnsureReady returns a live browser, launching one if there is none or the
// current one fails its health probe. The probe runs without the lock; only
// check-and-create is serialized. After Close it refuses with SESSION_CLOSED.
func (s *Session) EnsureReady(ctx context.Context) (*rod.Browser, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, s.closedErr()
	}
	current := s.browser
	s.mu.Unlock()

	if current != nil {
		err := s.probe(current)
		if err == nil {
			return current, nil
		}
		slog.Warn("browser health check failed, relaunching", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, s.closedErr()
	}
	switch {
	case s.browser != nil && s.browser != current:
		// Another caller launched while this one probed or waited.
		return s.browser, nil
	case s.browser != nil:
		s.teardown()
	}

	startCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	b, l, err := s.launch(startCtx)
	if err != nil {
		code := models.ErrCodeBrowserStart
		if ctx.Err() != nil {
			code = models.ErrCodeTimeout
		}
		return nil, models.NewScrapeError(code, "failed to start browser", err)
	}
	s.browser, s.launcher = b, l
	s.launches.Add(1)
	s.state.Store(StateReady)
	return b, nil
}

func probeBrowser(b *rod.Browser) error {
	_, err := b.Timeout(healthTimeout).Version()
	return err
}

func releaseBrowser(b *rod.Browser, l *launcher.Launcher) {
	if b != nil {
		if err := b.Close(); err != nil {
			slog.Debug("browser close failed", "error", err)
		}
	}
	if l != nil {
		l.Kill()
		l.Cleanup()
	}
}

// launchBrowser starts Chromium and connects to it. A launch that overruns
// ctx is killed.
func (s *Session) launchBrowser(ctx context.Context) (*rod.Browser, *launcher.Launcher, error) {
	l := launcher.New().
		Headless(s.cfg.Headless).
		NoSandbox(s.cfg.NoSandbox)

	if s.cfg.BrowserBin != "" {
		l = l.Bin(s.cfg.BrowserBin)
	}
	if s.cfg.DefaultProxy != "" {
		l = l.Proxy(s.cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	type result struct {
		browser *rod.Browser
		err     error
	}
	done := make(chan result, 1)

	go func() {
		controlURL, err := l.Launch()
		if err != nil {
			done <- result{err: err}
			return
		}
		slog.Info("browser launched", "controlURL", controlURL)

		b := rod.New().ControlURL(controlURL)
		if err := b.Connect(); err != nil {
			done <- result{err: err}
			return
		}
		done <- result{browser: b}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			l.Kill()
			return nil, nil, r.err
		}
		return r.browser, l, nil
	case <-ctx.Done():
		l.Kill()
		// Launch unblocks once the process is gone.
		go func() {
			if r := <-done; r.browser != nil {
				_ = r.browser.Close()
			}
		}()
		return nil, nil, ctx.Err()
	}
}

// teardown releases the current browser. Caller holds mu.
func (s *Session) teardown() {
	if s.browser != nil || s.launcher != nil {
		s.release(s.browser, s.launcher)
	}
	s.browser, s.launcher = nil, nil
	s.state.Store(StateIdle)
}

// Close releases the browser and kills the launcher process. It is terminal
// and idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	slog.Info("browser session shutting down")
	s.teardown()
	s.state.Store(StateClosed)
	return nil
}

// State reports idle, ready or closed. It does not wait for a launch in
// progress.
func (s *Session) State() string {
	return s.state.Load().(string)
}

// Launches is the number of successful browser launches so far.
func (s *Session) Launches() int64 {
	return s.launches.Load()
}
