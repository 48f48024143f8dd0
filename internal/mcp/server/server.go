// Package server serves mtgctx tools over the Model Context Protocol using
// the official MCP Go SDK (github.com/modelcontextprotocol/go-sdk).
//
// A [Server] wraps [tools.Tool] handlers so that every call is traced, counted
// and timed, and so that tool failures reach the caller as JSON error payloads
// rather than protocol errors. The same server can be run over stdio or
// mounted as a streamable HTTP handler.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/mtgctx/internal/mcp/tools"
	"github.com/MrWong99/mtgctx/internal/observe"
)

// Tool call statuses recorded in metrics.
const (
	statusOK       = "ok"
	statusError    = "error"
	statusCanceled = "canceled"
)

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics records tool metrics on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithInstructions sets the instructions returned to clients on initialize.
func WithInstructions(text string) Option {
	return func(s *Server) { s.instructions = text }
}

// Server is an MCP server exposing a fixed set of tools.
type Server struct {
	sdk          *mcpsdk.Server
	metrics      *observe.Metrics
	instructions string

	mu    sync.RWMutex
	stats map[string]*window
}

// New creates a Server announcing itself as name/version.
func New(name, version string, opts ...Option) *Server {
	s := &Server{stats: make(map[string]*window)}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.sdk = mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, &mcpsdk.ServerOptions{
		Instructions: s.instructions,
	})
	return s
}

// Register adds tools to the server. It rejects tools without a name or
// handler and names that are already registered; on error no tool of the
// batch is added.
func (s *Server) Register(ts ...tools.Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(ts))
	var errs []error
	for _, t := range ts {
		switch {
		case t.Name == "":
			errs = append(errs, errors.New("mcp server: tool must have a non-empty name"))
		case t.Handler == nil:
			errs = append(errs, fmt.Errorf("mcp server: tool %q must have a non-nil handler", t.Name))
		case seen[t.Name] || s.stats[t.Name] != nil:
			errs = append(errs, fmt.Errorf("mcp server: tool %q registered twice", t.Name))
		}
		seen[t.Name] = true
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	for _, t := range ts {
		w := newWindow(defaultWindowSize)
		s.stats[t.Name] = w
		s.sdk.AddTool(toSDKTool(t), s.handler(t, w))
	}
	return nil
}

// Tools returns the registered tool names in sorted order.
func (s *Server) Tools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.stats))
	for n := range s.stats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Stats returns latency and error statistics over the recent calls of every
// registered tool, sorted by name.
func (s *Server) Stats() []ToolStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolStats, 0, len(s.stats))
	for name, w := range s.stats {
		out = append(out, w.stats(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run serves a single session on transport until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context, transport mcpsdk.Transport) error {
	return s.sdk.Run(ctx, transport)
}

// ServeStdio serves one session over stdin/stdout.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Run(ctx, &mcpsdk.StdioTransport{})
}

// HTTPHandler returns a streamable HTTP handler serving this server to any
// number of sessions.
func (s *Server) HTTPHandler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server { return s.sdk }, nil)
}

func toSDKTool(t tools.Tool) *mcpsdk.Tool {
	schema := t.InputSchema
	if schema == nil {
		schema = tools.Object(map[string]any{})
	}
	openWorld := true
	return &mcpsdk.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
		Annotations: &mcpsdk.ToolAnnotations{
			ReadOnlyHint:   t.ReadOnly,
			IdempotentHint: t.ReadOnly,
			OpenWorldHint:  &openWorld,
		},
	}
}

// handler wraps a tool handler with tracing, metrics and result encoding.
func (s *Server) handler(t tools.Tool, w *window) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		ctx, span := observe.StartSpan(ctx, "tool "+t.Name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", t.Name)),
		)
		defer span.End()

		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}

		start := time.Now()
		v, err := t.Handler(ctx, args)
		elapsed := time.Since(start)

		res, status, err := encodeResult(v, err)
		w.record(elapsed, status != statusOK)
		s.metrics.RecordToolCall(ctx, t.Name, status)
		s.metrics.ToolExecutionDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("tool", t.Name), attribute.String("status", status)))

		log := observe.Logger(ctx).With("tool", t.Name, "status", status, "duration", elapsed)
		switch status {
		case statusOK:
			log.Debug("tool call finished")
		case statusCanceled:
			observe.FailSpan(span, err, "")
			log.Info("tool call canceled", "err", err)
		default:
			observe.FailSpan(span, nil, "tool returned an error payload")
			log.Info("tool call failed", "payload", textOf(res))
		}
		return res, err
	}
}

// encodeResult turns a handler return into a tool result. Cancellation is the
// only error passed on to the SDK; every other error becomes a JSON payload
// with IsError set.
func encodeResult(v any, err error) (*mcpsdk.CallToolResult, string, error) {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, statusCanceled, err
		}
		return errorResult(err), statusError, nil
	}
	b, mErr := json.Marshal(v)
	if mErr != nil {
		return errorResult(fmt.Errorf("mcp server: encode result: %w", mErr)), statusError, nil
	}
	return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(b)}}}, statusOK, nil
}

// errorResult renders err as a JSON object. Errors that know their own JSON
// form keep it; others are wrapped as {"error": msg}.
func errorResult(err error) *mcpsdk.CallToolResult {
	var b []byte
	var m json.Marshaler
	if errors.As(err, &m) {
		b, _ = m.MarshalJSON()
	}
	if len(b) == 0 {
		b, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(b)}},
		IsError: true,
	}
}

func textOf(res *mcpsdk.CallToolResult) string {
	if res == nil || len(res.Content) == 0 {
		return ""
	}
	if tc, ok := res.Content[0].(*mcpsdk.TextContent); ok {
		return tc.Text
	}
	return ""
}
