// Package scheduler re-checks every tracked product on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// Checker is implemented by tracker.Service.
type Checker interface {
	CheckAll(ctx context.Context) (ok, failed int, err error)
}

// PriceChecker runs Checker.CheckAll on a six-field cron spec. Overlapping
// runs are skipped.
type PriceChecker struct {
	cron    *cron.Cron
	checker Checker
	spec    string

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
	once    sync.Once
}

// New creates a PriceChecker. Nothing runs until Start.
func New(checker Checker, spec string) *PriceChecker {
	ctx, cancel := context.WithCancel(context.Background())
	return &PriceChecker{
		cron:    cron.New(cron.WithSeconds()),
		checker: checker,
		spec:    spec,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start schedules the checks. With runNow a first run starts immediately.
func (pc *PriceChecker) Start(runNow bool) error {
	if _, err := pc.cron.AddFunc(pc.spec, pc.Run); err != nil {
		return fmt.Errorf("scheduler: invalid spec %q: %w", pc.spec, err)
	}
	if runNow {
		go pc.Run()
	}
	pc.cron.Start()
	slog.Info("price checker scheduled", "spec", pc.spec)
	return nil
}

// Run performs one check of all products unless one is already running.
func (pc *PriceChecker) Run() {
	if !pc.running.CompareAndSwap(false, true) {
		slog.Warn("previous price check still running, skipping")
		return
	}
	pc.wg.Add(1)
	defer func() {
		pc.running.Store(false)
		pc.wg.Done()
	}()
	if pc.ctx.Err() != nil {
		return
	}

	slog.Info("starting scheduled price check")
	if _, _, err := pc.checker.CheckAll(pc.ctx); err != nil {
		slog.Error("scheduled price check failed", "error", err)
	}
}

// Stop cancels the running check and waits for it to return. Safe to call
// more than once.
func (pc *PriceChecker) Stop() {
	pc.once.Do(func() {
		<-pc.cron.Stop().Done()
		pc.cancel()
		pc.wg.Wait()
		slog.Info("price checker stopped")
	})
}
