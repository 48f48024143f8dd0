// Package health provides HTTP health, readiness and status handlers.
//
// The package exposes three endpoints:
//
//   - /healthz: liveness probe; always returns 200 OK.
//   - /readyz: readiness probe; returns 200 only when all registered
//     [Checker] functions pass.
//   - /statusz: a JSON snapshot of runtime state such as per-tool latency,
//     served only when a status function is configured.
//
// Probe responses are JSON objects with a top-level "status" field ("ok" or
// "fail") and a "checks" object holding each checker's result in
// registration order.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short label for this check (e.g. "datasets"). It appears as a
	// key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// result is the JSON response body for the probe endpoints.
type result struct {
	Status string                                 `json:"status"`
	Checks *orderedmap.OrderedMap[string, string] `json:"checks,omitempty"`
}

// Option configures a [Handler].
type Option func(*Handler)

// WithChecker adds a readiness check.
func WithChecker(c Checker) Option {
	return func(h *Handler) { h.checkers = append(h.checkers, c) }
}

// WithStatus enables /statusz. fn is called per request and its result is
// encoded as JSON.
func WithStatus(fn func(ctx context.Context) any) Option {
	return func(h *Handler) { h.status = fn }
}

// Handler serves the health endpoints. It is safe for concurrent use; its
// configuration is fixed at construction time.
type Handler struct {
	checkers []Checker
	status   func(ctx context.Context) any
}

// New creates a [Handler].
func New(opts ...Option) *Handler {
	h := &Handler{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Checkers run concurrently, each with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	errs := make([]error, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Go(func() {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			errs[i] = c.Check(ctx)
		})
	}
	wg.Wait()

	res := result{Status: "ok", Checks: orderedmap.New[string, string]()}
	status := http.StatusOK
	for i, c := range h.checkers {
		if errs[i] != nil {
			res.Checks.Set(c.Name, "fail: "+errs[i].Error())
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks.Set(c.Name, "ok")
	}

	writeJSON(w, status, res)
}

// Statusz writes the configured status snapshot, or 404 when none is set.
func (h *Handler) Statusz(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.status(r.Context()))
}

// Register adds the /healthz, /readyz and /statusz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if h.status != nil {
		mux.HandleFunc("GET /statusz", h.Statusz)
	}
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
