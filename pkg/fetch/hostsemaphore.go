package fetch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// hostEntry tracks a single host's semaphore and its usage state.
type hostEntry struct {
	sem    *semaphore.Weighted
	held   atomic.Int64 // permits currently held
	peak   atomic.Int64 // highest value held has reached
	waited atomic.Int64 // acquisitions that had to block
}

// HostSemaphorePool manages per-host semaphores that cap concurrent downloads to each host.
// Entries are created on first use and live as long as the pool, so every caller that names
// the same host shares the same permits. Once an entry exists, Acquire and Release on it
// touch only that host's state.
type HostSemaphorePool struct {
	entries sync.Map   // host -> *hostEntry
	mu      sync.Mutex // serializes entry creation
	limit   int64
	log     *logrus.Entry
}

// NewHostSemaphorePool creates a new pool with the given per-host concurrency limit.
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
		log.Warnf("per_host invalid or zero, defaulting to %d", limit)
	}
	return &HostSemaphorePool{
		limit: limit,
		log:   log,
	}
}

func (p *HostSemaphorePool) lookup(host string) (*hostEntry, bool) {
	v, ok := p.entries.Load(host)
	if !ok {
		return nil, false
	}
	return v.(*hostEntry), true
}

// entry returns the host's entry, creating it under the pool lock on first touch.
func (p *HostSemaphorePool) entry(host string) *hostEntry {
	if e, ok := p.lookup(host); ok {
		return e
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.lookup(host); ok {
		return e
	}
	e := &hostEntry{sem: semaphore.NewWeighted(p.limit)}
	p.entries.Store(host, e)
	p.log.WithFields(logrus.Fields{"host": host, "limit": p.limit}).Debug("Created new host semaphore")
	return e
}

// Acquire gets or creates a host semaphore and acquires one permit.
// Blocks until the permit is available or ctx is cancelled, in which case ctx's error is returned.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string) error {
	e := p.entry(host)

	if !e.sem.TryAcquire(1) {
		e.waited.Add(1)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	held := e.held.Add(1)
	for {
		peak := e.peak.Load()
		if held <= peak || e.peak.CompareAndSwap(peak, held) {
			break
		}
	}
	return nil
}

// Release releases one permit for the given host.
func (p *HostSemaphorePool) Release(host string) {
	e, exists := p.lookup(host)
	if exists {
		for {
			held := e.held.Load()
			if held == 0 {
				exists = false
				break
			}
			if e.held.CompareAndSwap(held, held-1) {
				break
			}
		}
	}
	if !exists {
		p.log.Errorf("hostsemaphore: Release called without a held permit for host: %s", host)
		return
	}

	e.sem.Release(1)
}

// HostStats is a snapshot of one host's permit usage.
type HostStats struct {
	Held   int64
	Peak   int64
	Waited int64
}

// Stats returns the usage snapshot for host. Unknown hosts report zeros.
func (p *HostSemaphorePool) Stats(host string) HostStats {
	e, ok := p.lookup(host)
	if !ok {
		return HostStats{}
	}
	return HostStats{Held: e.held.Load(), Peak: e.peak.Load(), Waited: e.waited.Load()}
}

// Limit returns the per-host permit count.
func (p *HostSemaphorePool) Limit() int64 {
	return p.limit
}

// Len returns the current number of tracked hosts.
func (p *HostSemaphorePool) Len() int {
	n := 0
	p.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
