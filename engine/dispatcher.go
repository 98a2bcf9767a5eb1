package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Dispatcher races several loaders with staged escalation: the cheapest
// loader starts first and heavier ones join after their delay if no page has
// arrived yet. It implements Loader itself.
type Dispatcher struct {
	loaders []Loader
	delays  []time.Duration
	memory  *DomainMemory
}

// NewDispatcher creates a Dispatcher. loaders[i] starts delays[i] after the
// race begins; missing delays default to 0.
func NewDispatcher(loaders []Loader, delays []time.Duration, memory *DomainMemory) *Dispatcher {
	d := make([]time.Duration, len(loaders))
	copy(d, delays)
	return &Dispatcher{
		loaders: loaders,
		delays:  d,
		memory:  memory,
	}
}

func (d *Dispatcher) Name() string { return "auto" }

// Load returns the first page any loader produces. A loader remembered for the
// host is tried alone first.
func (d *Dispatcher) Load(ctx context.Context, rawURL string) (Page, error) {
	host := hostOf(rawURL)

	if d.memory != nil {
		if remembered := d.memory.Get(host); remembered != "" {
			for _, l := range d.loaders {
				if l.Name() != remembered {
					continue
				}
				slog.Debug("domain memory hit", "host", host, "loader", remembered)
				page, err := l.Load(ctx, rawURL)
				if err == nil {
					return page, nil
				}
				if ctx.Err() != nil {
					return nil, Categorize(err, "load failed")
				}
				slog.Info("remembered loader failed, running full race",
					"host", host, "loader", remembered, "error", err)
				d.memory.Forget(host)
				d.memory.Fail(host, remembered)
				break
			}
		}
	}

	return d.race(ctx, rawURL, host)
}

// contender is a loader entered into one race with its start delay.
type contender struct {
	loader Loader
	delay  time.Duration
}

// contenders drops loaders that recently failed on host and shifts the
// remaining delays so the first one starts at once. If every loader is
// marked failing, all of them run.
func (d *Dispatcher) contenders(host string) []contender {
	var out []contender
	for i, l := range d.loaders {
		if d.memory != nil && d.memory.Failing(host, l.Name()) {
			slog.Debug("skipping recently failed loader", "host", host, "loader", l.Name())
			continue
		}
		out = append(out, contender{loader: l, delay: d.delays[i]})
	}
	if len(out) == 0 {
		for i, l := range d.loaders {
			out = append(out, contender{loader: l, delay: d.delays[i]})
		}
	}

	offset := out[0].delay
	for i := range out {
		out[i].delay = max(0, out[i].delay-offset)
	}
	return out
}

type raceResult struct {
	idx    int
	loader string
	page   Page
	err    error

	// canceled is set when the loader stopped because it lost the race.
	canceled bool
}

// racedPage ties the winning loader's context to the page, so reads keep
// working until the caller releases it.
type racedPage struct {
	Page
	cancel context.CancelFunc
	once   sync.Once
}

func (p *racedPage) Release() {
	p.once.Do(func() {
		p.Page.Release()
		p.cancel()
	})
}

func (d *Dispatcher) race(ctx context.Context, rawURL, host string) (Page, error) {
	entrants := d.contenders(host)

	cancels := make([]context.CancelFunc, len(entrants))
	results := make(chan raceResult, len(entrants))
	var wg sync.WaitGroup

	for i, c := range entrants {
		lctx, lcancel := context.WithCancel(ctx)
		cancels[i] = lcancel

		wg.Add(1)
		go func(i int, l Loader, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-lctx.Done():
					return
				case <-timer.C:
				}
			}
			if lctx.Err() != nil {
				return
			}

			slog.Debug("loader starting", "loader", l.Name(), "url", rawURL)
			page, err := l.Load(lctx, rawURL)
			if err != nil {
				slog.Debug("loader failed", "loader", l.Name(), "url", rawURL, "error", err)
			}
			results <- raceResult{
				idx:      i,
				loader:   l.Name(),
				page:     page,
				err:      err,
				canceled: err != nil && lctx.Err() != nil,
			}
		}(i, c.loader, c.delay)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			cancels[rr.idx]()
			if d.memory != nil && !rr.canceled {
				d.memory.Fail(host, rr.loader)
			}
			continue
		}

		for j, cancel := range cancels {
			if j != rr.idx {
				cancel()
			}
		}
		slog.Info("loader won race", "loader", rr.loader, "url", rawURL)
		if d.memory != nil {
			d.memory.Set(host, rr.loader)
		}
		// Late winners still hold browser pages.
		go releaseRemaining(results)
		return &racedPage{Page: rr.page, cancel: cancels[rr.idx]}, nil
	}

	for _, cancel := range cancels {
		cancel()
	}
	if lastErr == nil {
		if err := ctx.Err(); err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("dispatcher: all loaders failed for %s", rawURL)
		}
	}
	return nil, Categorize(lastErr, "all loaders failed")
}

func releaseRemaining(results <-chan raceResult) {
	for rr := range results {
		if rr.page != nil {
			rr.page.Release()
		}
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
