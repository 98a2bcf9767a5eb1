package scraper

import (
	"fmt"
	"time"

	"github.com/use-agent/pricescout/browser"
	"github.com/use-agent/pricescout/config"
	"github.com/use-agent/pricescout/engine"
	"github.com/use-agent/pricescout/models"
)

// Build wires the backend selected by cfg.Scraper.FetchMode. The browser is
// not launched here; the first scrape that needs it starts it.
func Build(cfg *config.Config) (*Scraper, error) {
	httpEngine := func() *engine.HTTPEngine {
		return engine.NewHTTPEngine(cfg.Browser.UserAgent, cfg.Browser.DefaultProxy, cfg.Engine.HTTPTimeout)
	}
	navigator := func() *browser.Navigator {
		return browser.NewNavigator(browser.NewSession(cfg.Browser), cfg.Browser, cfg.Scraper)
	}

	switch cfg.Scraper.FetchMode {
	case config.FetchModeBrowser, "":
		nav := navigator()
		return New(cfg.Scraper, nav,
			WithStats(nav.Stats),
			OnShutdown(nav.Shutdown),
		), nil

	case config.FetchModeHTTP:
		return New(cfg.Scraper, httpEngine(),
			WithStats(func() models.SessionStats {
				return models.SessionStats{State: browser.StateIdle}
			}),
		), nil

	case config.FetchModeAuto:
		nav := navigator()
		memory := engine.NewDomainMemory(cfg.Engine.DomainMemoryTTL, cfg.Engine.FailureTTL)
		dispatcher := engine.NewDispatcher(
			[]engine.Loader{httpEngine(), nav},
			[]time.Duration{0, cfg.Engine.EscalationDelay},
			memory,
		)
		return New(cfg.Scraper, dispatcher,
			WithStats(nav.Stats),
			OnShutdown(nav.Shutdown),
			OnShutdown(func() error { memory.Stop(); return nil }),
		), nil

	default:
		return nil, fmt.Errorf("scraper: unknown fetch mode %q", cfg.Scraper.FetchMode)
	}
}
