package fetch

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

const defaultPerHostLimit = 4

// HostUsage is a point-in-time view of one host's concurrency cap
type HostUsage struct {
	Host     string
	Active   int64 // permits held or awaited right now
	Peak     int64 // most permits held at once
	Acquired int64
	Waited   int64 // acquires that found the host saturated
}

type hostSlot struct {
	sem         *semaphore.Weighted
	held        int64
	waiting     int64
	peak        int64
	acquired    int64
	waited      int64
	lastRelease time.Time
}

func (s *hostSlot) idleSince(now time.Time, maxIdle time.Duration) bool {
	return s.held == 0 && s.waiting == 0 && !s.lastRelease.IsZero() && now.Sub(s.lastRelease) >= maxIdle
}

// HostSemaphorePool caps concurrent requests per host. Hosts are keyed by
// lowercase hostname plus any non-default port, so http://Example.com and
// https://example.com:443 share one cap when a scan tries both schemes.
// One pool is shared by every target in a run.
type HostSemaphorePool struct {
	slots map[string]*hostSlot
	mu    sync.Mutex
	limit int64
	log   *logrus.Entry
}

// NewHostSemaphorePool creates a pool allowing maxPerHost concurrent requests per host
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = defaultPerHostLimit
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", limit)
	}
	return &HostSemaphorePool{
		slots: make(map[string]*hostSlot),
		limit: limit,
		log:   log,
	}
}

// hostKey returns the cap key for u: hostname, plus the port when it is not the scheme default
func hostKey(u *url.URL) string {
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	port := u.Port()
	switch {
	case port == "",
		port == "80" && strings.EqualFold(u.Scheme, "http"),
		port == "443" && strings.EqualFold(u.Scheme, "https"):
		return host
	}
	return host + ":" + port
}

// Acquire blocks until a permit for u's host is free or ctx ends.
// The returned release func gives the permit back; calling it more than once is a no-op.
func (p *HostSemaphorePool) Acquire(ctx context.Context, u *url.URL) (release func(), err error) {
	key := hostKey(u)

	p.mu.Lock()
	slot, ok := p.slots[key]
	if !ok {
		slot = &hostSlot{sem: semaphore.NewWeighted(p.limit)}
		p.slots[key] = slot
		p.log.WithFields(logrus.Fields{"host": key, "limit": p.limit}).Debug("Created host semaphore")
	}
	slot.waiting++
	p.mu.Unlock()

	if !slot.sem.TryAcquire(1) {
		start := time.Now()
		p.mu.Lock()
		slot.waited++
		p.mu.Unlock()
		if err := slot.sem.Acquire(ctx, 1); err != nil {
			p.mu.Lock()
			slot.waiting--
			p.mu.Unlock()
			return nil, err
		}
		p.log.WithFields(logrus.Fields{"host": key, "wait": time.Since(start).Round(time.Millisecond)}).Debug("Host cap reached, waited for permit")
	}

	p.mu.Lock()
	slot.waiting--
	slot.held++
	slot.acquired++
	if slot.held > slot.peak {
		slot.peak = slot.held
	}
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			slot.held--
			slot.lastRelease = time.Now()
			p.mu.Unlock()
			slot.sem.Release(1)
		})
	}, nil
}

// Usage returns a snapshot of every tracked host, most contended first
func (p *HostSemaphorePool) Usage() []HostUsage {
	p.mu.Lock()
	out := make([]HostUsage, 0, len(p.slots))
	for host, s := range p.slots {
		out = append(out, HostUsage{
			Host:     host,
			Active:   s.held + s.waiting,
			Peak:     s.peak,
			Acquired: s.acquired,
			Waited:   s.waited,
		})
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Waited != out[j].Waited {
			return out[i].Waited > out[j].Waited
		}
		return out[i].Host < out[j].Host
	})
	return out
}

// RunEviction drops idle hosts every interval until ctx ends. Run it in a goroutine.
func (p *HostSemaphorePool) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.evictIdle(interval)
		case <-ctx.Done():
			p.log.Debugf("Stopping host semaphore eviction: %v", ctx.Err())
			return
		}
	}
}

func (p *HostSemaphorePool) evictIdle(maxIdle time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	evicted := 0
	for host, slot := range p.slots {
		if slot.idleSince(now, maxIdle) {
			delete(p.slots, host)
			evicted++
		}
	}
	if evicted > 0 {
		p.log.Debugf("Evicted %d idle host semaphores, %d remain", evicted, len(p.slots))
	}
}

// Len returns the number of tracked hosts
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.slots)
}
