package server

import (
	"slices"
	"sync"
	"time"
)

// defaultWindowSize is the number of recent calls kept per tool.
const defaultWindowSize = 100

// window tracks the last N call latencies of one tool in a ring buffer. All
// methods are safe for concurrent use.
type window struct {
	mu      sync.Mutex
	samples []time.Duration
	failed  []bool
	pos     int
	count   int
}

func newWindow(size int) *window {
	if size <= 0 {
		size = defaultWindowSize
	}
	return &window{samples: make([]time.Duration, size), failed: make([]bool, size)}
}

// record adds one call. The oldest call is overwritten once the buffer is
// full.
func (w *window) record(d time.Duration, failed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.pos] = d
	w.failed[w.pos] = failed
	w.pos = (w.pos + 1) % len(w.samples)
	w.count++
}

// ToolStats summarizes the recent calls of one tool.
type ToolStats struct {
	Name      string        `json:"name"`
	Calls     int           `json:"calls"`
	P50       time.Duration `json:"p50"`
	P99       time.Duration `json:"p99"`
	ErrorRate float64       `json:"error_rate"`
}

func (w *window) stats(name string) ToolStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := ToolStats{Name: name, Calls: w.count}
	n := min(w.count, len(w.samples))
	if n == 0 {
		return st
	}
	sorted := slices.Clone(w.samples[:n])
	slices.Sort(sorted)
	st.P50 = sorted[len(sorted)/2]
	st.P99 = sorted[int(float64(len(sorted)-1)*0.99)]

	errs := 0
	for _, f := range w.failed[:n] {
		if f {
			errs++
		}
	}
	st.ErrorRate = float64(errs) / float64(n)
	return st
}
