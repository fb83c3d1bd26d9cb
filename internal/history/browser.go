// Package history serves the bill history views. Rapid search term changes from one
// session are coalesced so that only the latest filter reaches the backend.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/shopbill/shopfront/internal/backend"
)

// fetchTimeout bounds a debounced fetch, which outlives the requests that queued it.
const fetchTimeout = 20 * time.Second

// FetchFunc loads bills for a filter.
type FetchFunc func(ctx context.Context, token string, filter backend.BillFilter) ([]backend.Bill, error)

type result struct {
	bills  []backend.Bill
	filter backend.BillFilter
	err    error
}

// Browser debounces bill searches for one session. Each Search replaces the pending
// filter and restarts the quiet period; when it elapses a single fetch runs with the
// latest filter and every waiting caller receives that result.
type Browser struct {
	delay time.Duration
	fetch FetchFunc

	mu       sync.Mutex
	timer    *time.Timer
	ctx      context.Context
	token    string
	filter   backend.BillFilter
	waiters  []chan result
	lastUsed time.Time
}

// NewBrowser constructs a Browser. A zero delay fetches immediately.
func NewBrowser(delay time.Duration, fetch FetchFunc) *Browser {
	return &Browser{delay: delay, fetch: fetch}
}

// Search queues filter and waits for the debounced fetch. It returns the bills together
// with the filter that produced them, which is newer than filter when a later Search
// replaced it. A canceled ctx stops the wait but not a fetch already queued for other callers.
func (b *Browser) Search(ctx context.Context, token string, filter backend.BillFilter) ([]backend.Bill, backend.BillFilter, error) {
	if b.delay <= 0 {
		b.touch()
		bills, err := b.fetch(ctx, token, filter)
		return bills, filter, err
	}

	ch := make(chan result, 1)
	b.mu.Lock()
	b.ctx = context.WithoutCancel(ctx)
	b.token = token
	b.filter = filter
	b.waiters = append(b.waiters, ch)
	b.lastUsed = time.Now()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.fire)
	b.mu.Unlock()

	select {
	case res := <-ch:
		return res.bills, res.filter, res.err
	case <-ctx.Done():
		return nil, filter, ctx.Err()
	}
}

// fire runs one fetch for the latest filter. A timer that lost the race with a newer
// Search finds no waiters and does nothing.
func (b *Browser) fire() {
	b.mu.Lock()
	waiters := b.waiters
	b.waiters = nil
	b.timer = nil
	parent, token, filter := b.ctx, b.token, b.filter
	b.mu.Unlock()
	if len(waiters) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(parent, fetchTimeout)
	defer cancel()
	bills, err := b.fetch(ctx, token, filter)
	for _, ch := range waiters {
		ch <- result{bills: bills, filter: filter, err: err}
	}
}

// Stop cancels the pending timer. Callers still waiting receive context.Canceled.
func (b *Browser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	for _, ch := range b.waiters {
		ch <- result{err: context.Canceled}
	}
	b.waiters = nil
}

func (b *Browser) touch() {
	b.mu.Lock()
	b.lastUsed = time.Now()
	b.mu.Unlock()
}

func (b *Browser) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUsed
}

// Registry keeps one Browser per session.
type Registry struct {
	delay time.Duration
	idle  time.Duration
	fetch FetchFunc

	mu       sync.Mutex
	browsers map[string]*Browser
}

// NewRegistry constructs a Registry. Browsers unused for longer than idle are evicted by Sweep.
func NewRegistry(delay, idle time.Duration, fetch FetchFunc) *Registry {
	return &Registry{delay: delay, idle: idle, fetch: fetch, browsers: make(map[string]*Browser)}
}

// Browser returns the browser of sessionID, creating it on first use.
func (r *Registry) Browser(sessionID string) *Browser {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.browsers[sessionID]
	if !ok {
		b = NewBrowser(r.delay, r.fetch)
		b.lastUsed = time.Now()
		r.browsers[sessionID] = b
	}
	return b
}

// Forget drops the browser of sessionID.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	b, ok := r.browsers[sessionID]
	delete(r.browsers, sessionID)
	r.mu.Unlock()
	if ok {
		b.Stop()
	}
}

// Len reports how many sessions have a browser.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.browsers)
}

// Sweep evicts browsers idle since before now-idle and returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := now.Add(-r.idle)
	r.mu.Lock()
	var stale []*Browser
	for id, b := range r.browsers {
		if b.idleSince().Before(cutoff) {
			stale = append(stale, b)
			delete(r.browsers, id)
		}
	}
	r.mu.Unlock()
	for _, b := range stale {
		b.Stop()
	}
	return len(stale)
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}
