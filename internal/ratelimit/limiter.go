// Package ratelimit enforces a minimum spacing between successive calls to a
// named upstream API.
//
// Each API name owns an independent token bucket (burst 1, one token per
// interval) created lazily on first use. Waiters for the same name are
// serialised strictly: every [Limiter.Wait] reserves the next free slot before
// sleeping, so concurrent callers queue up at interval-sized steps instead of
// racing on a shared "last call" timestamp. Waiting on one name never blocks
// another.
//
// All methods are safe for concurrent use.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum start-to-start gap between two calls to the
// same API.
const DefaultInterval = 100 * time.Millisecond

// Clock abstracts time so tests can drive the limiter deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is done, whichever happens first.
	Sleep(ctx context.Context, d time.Duration) error
}

// systemClock is the wall-clock [Clock].
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option is a functional option for [New].
type Option func(*Limiter)

// WithInterval overrides [DefaultInterval].
func WithInterval(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithClock replaces the wall clock. Intended for tests.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithObserver registers a callback invoked after every Wait with the API name
// and the time spent sleeping (zero when no wait was needed).
func WithObserver(fn func(ctx context.Context, api string, waited time.Duration)) Option {
	return func(l *Limiter) { l.observe = fn }
}

// Limiter spaces calls per API name.
type Limiter struct {
	interval time.Duration
	clock    Clock
	observe  func(ctx context.Context, api string, waited time.Duration)

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New returns a Limiter with a 100ms interval and the system clock unless
// overridden by opts.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		interval: DefaultInterval,
		clock:    systemClock{},
		buckets:  make(map[string]*rate.Limiter),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration { return l.interval }

// bucket returns the token bucket for api, creating it on first use.
func (l *Limiter) bucket(api string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[api]
	if !ok {
		b = rate.NewLimiter(rate.Every(l.interval), 1)
		l.buckets[api] = b
	}
	return b
}

// Wait blocks until a call to api may start. The first call for a name never
// waits. The only possible error is ctx's, in which case the reserved slot is
// released again.
func (l *Limiter) Wait(ctx context.Context, api string) error {
	b := l.bucket(api)

	now := l.clock.Now()
	r := b.ReserveN(now, 1)
	delay := r.DelayFrom(now)

	if delay > 0 {
		slog.Debug("rate limiting upstream call", "api", api, "delay", delay)
		if err := l.clock.Sleep(ctx, delay); err != nil {
			r.CancelAt(l.clock.Now())
			return err
		}
	}
	if l.observe != nil {
		l.observe(ctx, api, delay)
	}
	return nil
}
