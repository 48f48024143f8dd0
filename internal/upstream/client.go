// Package upstream holds the HTTP plumbing shared by every third-party data
// source: rate limiting, request instrumentation, and the error taxonomy that
// separates "not found" from other upstream statuses and transport failures.
//
// Source-specific adapters live in the sub-packages and build on [Client].
package upstream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/mtgctx/internal/observe"
)

// DefaultUserAgent identifies mtgctx to upstream APIs. Scryfall asks every
// client to send one.
const DefaultUserAgent = "mtgctx/1.0"

// maxErrorBody caps how much of a non-2xx body is read for detail text.
const maxErrorBody = 8 << 10

// Waiter is the rate limiter contract consumed by [Client].
type Waiter interface {
	Wait(ctx context.Context, api string) error
}

// Option is a functional option for [New].
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter sets the rate limiter consulted before every request.
func WithLimiter(w Waiter) Option {
	return func(c *Client) { c.limiter = w }
}

// WithUserAgent overrides [DefaultUserAgent].
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewHTTPClient returns an HTTP client whose transport emits OTel client
// spans. A zero timeout leaves requests bounded only by the caller's context.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
}

// Client performs rate-limited, instrumented GET requests against one
// upstream API. It is safe for concurrent use.
type Client struct {
	api       string
	http      *http.Client
	limiter   Waiter
	userAgent string
	metrics   *observe.Metrics
}

// New returns a Client for the upstream named api. The name is the rate
// limiter key and the metric label.
func New(api string, opts ...Option) *Client {
	c := &Client{
		api:       api,
		userAgent: DefaultUserAgent,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = NewHTTPClient(0)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// API returns the upstream name this client was created for.
func (c *Client) API() string { return c.api }

// GetJSON fetches url and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		e := transportError(c.api, url, "decode response", err)
		c.metrics.RecordUpstreamError(ctx, c.api, string(e.Kind))
		return e
	}
	return nil
}

// GetText fetches url and returns the body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url, "text/plain")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.api); err != nil {
			return nil, transportError(c.api, url, "rate limiter", err)
		}
	}

	ctx, span := observe.StartSpan(ctx, "upstream "+c.api,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("upstream.api", c.api),
			attribute.String("url.full", url),
		),
	)
	defer span.End()

	body, status, err := c.roundTrip(ctx, url, accept)
	if err != nil {
		observe.FailSpan(span, err, "")
		c.metrics.RecordUpstreamError(ctx, c.api, string(KindOf(err)))
		observe.Logger(ctx).Debug("upstream request failed", "api", c.api, "url", url, "err", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, url, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, transportError(c.api, url, "build request", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamRequest(ctx, c.api, "transport_error", time.Since(start))
		return nil, 0, transportError(c.api, url, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.RecordUpstreamRequest(ctx, c.api, strconv.Itoa(resp.StatusCode), time.Since(start))
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, resp.StatusCode, statusError(c.api, url, resp.StatusCode, errorDetails(raw))
	}

	body, err := io.ReadAll(resp.Body)
	c.metrics.RecordUpstreamRequest(ctx, c.api, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return nil, resp.StatusCode, transportError(c.api, url, "read body", err)
	}
	slog.Debug("upstream request", "api", c.api, "url", url, "status", resp.StatusCode,
		"bytes", len(body), "duration", time.Since(start))
	return body, resp.StatusCode, nil
}

// errorDetails pulls a human readable message out of an error body. Scryfall
// and Commander Spellbook use "details", EDHREC and others "message" or
// "detail".
func errorDetails(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, path := range []string{"details", "detail", "message", "error"} {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String {
			return r.String()
		}
	}
	return ""
}
