// Package cache memoizes process-lifetime datasets.
//
// A [Dataset] is populated lazily on first use and then fixed for the rest of
// the process: the first outcome, success or failure, is returned to every
// later caller without further upstream I/O. There is no TTL and no
// invalidation. Concurrent first callers share one population via
// singleflight.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/mtgctx/internal/observe"
)

// Option is a functional option for [New].
type Option func(*config)

type config struct {
	metrics *observe.Metrics
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// Dataset is a fetch-once value of type T. The zero value is not usable; use
// [New].
type Dataset[T any] struct {
	name    string
	fetch   func(context.Context) (T, error)
	metrics *observe.Metrics
	group   singleflight.Group

	mu   sync.RWMutex
	done bool
	val  T
	err  error
}

// New returns a Dataset named name that is populated by fetch.
func New[T any](name string, fetch func(context.Context) (T, error), opts ...Option) *Dataset[T] {
	cfg := config{}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observe.DefaultMetrics()
	}
	return &Dataset[T]{name: name, fetch: fetch, metrics: cfg.metrics}
}

// Name returns the dataset name.
func (d *Dataset[T]) Name() string { return d.name }

// Get returns the cached outcome, populating it first if needed.
//
// The population runs detached from ctx's cancellation so that one caller
// giving up does not fail the fetch for others; ctx still bounds how long
// this caller waits. An outcome that is itself a cancellation is not cached.
func (d *Dataset[T]) Get(ctx context.Context) (T, error) {
	if v, err, ok := d.load(); ok {
		d.metrics.RecordCacheLookup(ctx, d.name, observe.CacheHit)
		return v, err
	}
	d.metrics.RecordCacheLookup(ctx, d.name, observe.CacheMiss)

	ch := d.group.DoChan(d.name, func() (any, error) {
		if v, err, ok := d.load(); ok {
			return outcome[T]{v, err}, nil
		}
		v, err := d.fetch(context.WithoutCancel(ctx))
		if errors.Is(err, context.Canceled) {
			return outcome[T]{v, err}, nil
		}
		d.store(v, err)
		d.metrics.RecordCacheLookup(ctx, d.name, observe.CacheFill)
		if err != nil {
			slog.Warn("cached dataset failure", "dataset", d.name, "err", err)
		} else {
			slog.Info("dataset cached", "dataset", d.name)
		}
		return outcome[T]{v, err}, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		o := r.Val.(outcome[T])
		return o.val, o.err
	}
}

// Populated reports whether an outcome has been cached.
func (d *Dataset[T]) Populated() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.done
}

// Err returns the cached failure, or nil when the dataset is unpopulated or
// holds a value.
func (d *Dataset[T]) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

type outcome[T any] struct {
	val T
	err error
}

func (d *Dataset[T]) load() (T, error, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.val, d.err, d.done
}

func (d *Dataset[T]) store(v T, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.val, d.err, d.done = v, err, true
}
