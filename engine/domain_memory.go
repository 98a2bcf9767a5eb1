package engine

import (
	"sync"
	"time"
)

type hostRecord struct {
	winner      string
	winnerUntil time.Time

	// failedUntil holds loaders that recently failed on this host.
	failedUntil map[string]time.Time
}

func (r *hostRecord) expired(now time.Time) bool {
	if now.Before(r.winnerUntil) {
		return false
	}
	for _, until := range r.failedUntil {
		if now.Before(until) {
			return false
		}
	}
	return true
}

// DomainMemory keeps per-host loader outcomes: the loader that last produced
// a page, which the dispatcher tries alone, and loaders that recently failed,
// which the race skips. Records are pruned hourly.
type DomainMemory struct {
	mu      sync.Mutex
	hosts   map[string]*hostRecord
	ttl     time.Duration
	failTTL time.Duration
	now     func() time.Time

	done chan struct{}
	once sync.Once
}

// NewDomainMemory remembers winners for ttl and failures for failTTL, and
// starts the pruning goroutine.
func NewDomainMemory(ttl, failTTL time.Duration) *DomainMemory {
	dm := &DomainMemory{
		hosts:   make(map[string]*hostRecord),
		ttl:     ttl,
		failTTL: failTTL,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go dm.cleanupLoop()
	return dm
}

func (dm *DomainMemory) record(host string) *hostRecord {
	r, ok := dm.hosts[host]
	if !ok {
		r = &hostRecord{failedUntil: make(map[string]time.Time)}
		dm.hosts[host] = r
	}
	return r
}

// Get returns the remembered winner for host, or "" if unknown or expired.
func (dm *DomainMemory) Get(host string) string {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	r, ok := dm.hosts[host]
	if !ok || !dm.now().Before(r.winnerUntil) {
		return ""
	}
	return r.winner
}

// Set records loader as the winner for host and clears its failure mark.
func (dm *DomainMemory) Set(host, loader string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	r := dm.record(host)
	r.winner = loader
	r.winnerUntil = dm.now().Add(dm.ttl)
	delete(r.failedUntil, loader)
}

// Forget drops the remembered winner for host.
func (dm *DomainMemory) Forget(host string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if r, ok := dm.hosts[host]; ok {
		r.winner = ""
		r.winnerUntil = time.Time{}
	}
}

// Fail marks loader as failing on host for the failure TTL.
func (dm *DomainMemory) Fail(host, loader string) {
	if dm.failTTL <= 0 {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.record(host).failedUntil[loader] = dm.now().Add(dm.failTTL)
}

// Failing reports whether loader failed on host within the failure TTL.
func (dm *DomainMemory) Failing(host, loader string) bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	r, ok := dm.hosts[host]
	if !ok {
		return false
	}
	until, ok := r.failedUntil[loader]
	return ok && dm.now().Before(until)
}

// Stop terminates the pruning goroutine. Safe to call more than once.
func (dm *DomainMemory) Stop() {
	dm.once.Do(func() { close(dm.done) })
}

func (dm *DomainMemory) prune() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	now := dm.now()
	for host, r := range dm.hosts {
		if r.expired(now) {
			delete(dm.hosts, host)
		}
	}
}

func (dm *DomainMemory) cleanupLoop() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			dm.prune()
		}
	}
}
