// Package app wires all mtgctx subsystems into a running MCP server.
//
// The App struct owns the full lifecycle: New builds the telemetry
// providers, the shared rate limiter, the upstream clients, the aggregator
// service and the MCP server; Run serves the configured transport; and
// Shutdown tears everything down in reverse order.
//
// For testing, inject a metrics sink via [WithMetrics] and point the upstream
// base URLs of the config at httptest servers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/MrWong99/mtgctx/internal/config"
	"github.com/MrWong99/mtgctx/internal/health"
	"github.com/MrWong99/mtgctx/internal/mcp"
	"github.com/MrWong99/mtgctx/internal/mcp/server"
	"github.com/MrWong99/mtgctx/internal/mcp/tools/mtgtools"
	"github.com/MrWong99/mtgctx/internal/mtg"
	"github.com/MrWong99/mtgctx/internal/observe"
	"github.com/MrWong99/mtgctx/internal/ratelimit"
	"github.com/MrWong99/mtgctx/internal/upstream"
	"github.com/MrWong99/mtgctx/internal/upstream/archidekt"
	"github.com/MrWong99/mtgctx/internal/upstream/edhrec"
	"github.com/MrWong99/mtgctx/internal/upstream/moxfield"
	"github.com/MrWong99/mtgctx/internal/upstream/rulestext"
	"github.com/MrWong99/mtgctx/internal/upstream/scryfall"
	"github.com/MrWong99/mtgctx/internal/upstream/spellbook"
)

// Name is the implementation name announced to MCP clients.
const Name = "mtgctx"

// MCPPath is the route of the streamable HTTP endpoint.
const MCPPath = "/mcp"

// App owns all subsystem lifetimes.
type App struct {
	version    string
	levels     *slog.LevelVar
	configPath string
	overrides  func(*config.Config)

	mu  sync.Mutex
	cfg *config.Config

	// Subsystems, initialised in New and torn down in Shutdown.
	provider *observe.Provider
	metrics  *observe.Metrics
	limiter  *ratelimit.Limiter
	service  *mtg.Service
	server   *server.Server
	health   *health.Handler
	watcher  *config.Watcher

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithVersion sets the version announced to clients and reported in
// telemetry.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithLevelVar lets the app adjust the process log level when the config
// file changes.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.levels = lv }
}

// WithConfigWatch polls the config file at path and hot-applies log level
// changes. overrides, if non-nil, is applied to every reloaded config so that
// command line and environment settings keep precedence.
func WithConfigWatch(path string, overrides func(*config.Config)) Option {
	return func(a *App) {
		a.configPath = path
		a.overrides = overrides
	}
}

// WithMetrics injects a metrics sink. The Prometheus provider is not started
// and /metrics is not served.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, version: "dev"}
	for _, o := range opts {
		o(a)
	}

	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	a.limiter = ratelimit.New(
		ratelimit.WithInterval(cfg.Upstreams.MinInterval),
		ratelimit.WithObserver(a.metrics.RecordRateLimitWait),
	)

	svc, err := mtg.New(a.sources(), mtg.WithMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("app: init service: %w", err)
	}
	a.service = svc

	a.server = server.New(Name, a.version,
		server.WithMetrics(a.metrics),
		server.WithInstructions(mtgtools.Instructions),
	)
	if err := a.server.Register(mtgtools.Tools(svc)...); err != nil {
		return nil, fmt.Errorf("app: register tools: %w", err)
	}

	a.health = health.New(
		health.WithChecker(datasetsChecker(svc)),
		health.WithStatus(a.status),
	)

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.onConfigChange)
		if err != nil {
			return nil, fmt.Errorf("app: watch config: %w", err)
		}
		a.watcher = w
		a.closers = append(a.closers, func(context.Context) error {
			w.Stop()
			return nil
		})
	}

	slog.Info("app initialised",
		"transport", cfg.Server.Transport,
		"tools", len(a.server.Tools()),
		"min_interval", a.limiter.Interval(),
	)
	return a, nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}
	if !a.cfg.Telemetry.MetricsEnabled() {
		a.metrics = observe.DefaultMetrics()
		return nil
	}
	p, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    a.cfg.Telemetry.ServiceName,
		ServiceVersion: a.version,
	})
	if err != nil {
		return err
	}
	a.provider = p
	a.closers = append(a.closers, p.Shutdown)

	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

// sources builds one upstream client per API. All clients share one HTTP
// client and one rate limiter.
func (a *App) sources() mtg.Sources {
	up := a.cfg.Upstreams
	hc := upstream.NewHTTPClient(up.Timeout)
	client := func(api string) *upstream.Client {
		return upstream.New(api,
			upstream.WithHTTPClient(hc),
			upstream.WithLimiter(a.limiter),
			upstream.WithUserAgent(up.UserAgent),
			upstream.WithMetrics(a.metrics),
		)
	}
	return mtg.Sources{
		Cards:           scryfall.New(client(scryfall.API), scryfall.WithBaseURL(up.Scryfall.BaseURL)),
		Recommendations: edhrec.New(client(edhrec.API), edhrec.WithBaseURL(up.EDHREC.BaseURL)),
		Combos:          spellbook.New(client(spellbook.API), spellbook.WithBaseURL(up.Spellbook.BaseURL)),
		Rules:           rulestext.New(client(rulestext.API), rulestext.WithURL(up.Rules.URL, up.Rules.LastUpdated)),
		Archidekt:       archidekt.New(client(archidekt.API), archidekt.WithBaseURL(up.Archidekt.BaseURL)),
		Moxfield:        moxfield.New(client(moxfield.API), moxfield.WithBaseURL(up.Moxfield.BaseURL)),
	}
}

// Service returns the aggregator service.
func (a *App) Service() *mtg.Service { return a.service }

// Server returns the MCP server.
func (a *App) Server() *server.Server { return a.server }

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Handler returns the HTTP handler of the streamable-http transport: the MCP
// endpoint, the health probes and, when the Prometheus provider runs,
// /metrics.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(MCPPath, a.server.HTTPHandler())
	a.health.Register(mux)
	if a.provider != nil {
		mux.Handle("GET /metrics", a.provider.MetricsHandler())
	}
	return observe.Middleware(a.metrics)(mux)
}

// Run serves the configured transport until ctx is cancelled or, for stdio,
// the client disconnects.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config()
	if cfg.Server.Warm {
		go a.warm(ctx)
	}

	switch cfg.Server.Transport {
	case mcp.TransportStreamableHTTP:
		ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen: %w", err)
		}
		return a.Serve(ctx, ln)
	default:
		slog.Info("serving MCP over stdio")
		err := a.server.ServeStdio(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}

// Serve serves [App.Handler] on ln until ctx is cancelled, then shuts the
// HTTP server down gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("serving MCP over streamable HTTP", "addr", ln.Addr().String(), "path", MCPPath)
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("app: serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config().Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown http: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: serve http: %w", err)
	}
	return nil
}

func (a *App) warm(ctx context.Context) {
	start := time.Now()
	if err := a.service.Warm(ctx); err != nil {
		slog.Warn("dataset warm-up incomplete", "err", err, "elapsed", time.Since(start))
		return
	}
	slog.Info("datasets warmed", "elapsed", time.Since(start))
}

// Reload re-reads the watched config file immediately.
func (a *App) Reload() error {
	if a.watcher == nil {
		return errors.New("app: reload: no config file is watched")
	}
	if _, err := a.watcher.Reload(); err != nil {
		return fmt.Errorf("app: reload: %w", err)
	}
	return nil
}

// onConfigChange applies the hot-reloadable part of a changed config file.
func (a *App) onConfigChange(_, next *config.Config) {
	c := *next
	if a.overrides != nil {
		a.overrides(&c)
	}

	a.mu.Lock()
	d := config.Diff(a.cfg, &c)
	if d.LogLevelChanged {
		a.cfg.Server.LogLevel = d.NewLogLevel
	}
	a.mu.Unlock()

	if d.LogLevelChanged && a.levels != nil {
		a.levels.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart to take effect", "sections", d.RestartRequired)
	}
}

// Shutdown stops the config watcher and flushes telemetry. It is safe to
// call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if ctx.Err() != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				errs = append(errs, ctx.Err())
				break
			}
			if err := a.closers[i](ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
				errs = append(errs, err)
			}
		}
		shutdownErr = errors.Join(errs...)

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
