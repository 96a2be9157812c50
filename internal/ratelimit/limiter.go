package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired entries are dropped.
const DefaultSweepInterval = 5 * time.Minute

// Config describes a fixed window: at most MaxRequests per Window.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Result is the outcome of a single Check.
type Result struct {
	Allowed       bool
	Remaining     int
	ResetTime     time.Time
	TotalRequests int
}

type entry struct {
	count     int
	resetTime time.Time
}

// Limiter counts requests per identifier inside a window that starts with the
// first request and is replaced once its reset time has passed. State lives in
// memory only.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time

	sweepInterval time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	started       bool
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSweepInterval overrides DefaultSweepInterval.
func WithSweepInterval(d time.Duration) Option {
	return func(l *Limiter) { l.sweepInterval = d }
}

// New creates a limiter. Call Start to enable the background sweep.
func New(opts ...Option) *Limiter {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Limiter{
		entries:       make(map[string]*entry),
		now:           time.Now,
		sweepInterval: DefaultSweepInterval,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records a request for identifier and reports whether it is allowed.
func (l *Limiter) Check(identifier string, cfg Config) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[identifier]
	if !ok || now.After(e.resetTime) {
		e = &entry{count: 1, resetTime: now.Add(cfg.Window)}
		l.entries[identifier] = e
		return Result{
			Allowed:       true,
			Remaining:     cfg.MaxRequests - 1,
			ResetTime:     e.resetTime,
			TotalRequests: 1,
		}
	}

	e.count++
	if e.count > cfg.MaxRequests {
		return Result{
			Allowed:       false,
			Remaining:     0,
			ResetTime:     e.resetTime,
			TotalRequests: e.count,
		}
	}

	return Result{
		Allowed:       true,
		Remaining:     cfg.MaxRequests - e.count,
		ResetTime:     e.resetTime,
		TotalRequests: e.count,
	}
}

// Sweep removes every entry whose window has expired.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, e := range l.entries {
		if now.After(e.resetTime) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Start launches the periodic sweep. It is safe to call once.
func (l *Limiter) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.mu.Unlock()

	ticker := time.NewTicker(l.sweepInterval)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-l.ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// Stop ends the sweep goroutine and waits for it to exit.
func (l *Limiter) Stop() {
	l.cancel()
	l.wg.Wait()
}
