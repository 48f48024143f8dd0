// Command mtgctx serves Magic: The Gathering context tools over the Model
// Context Protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/mtgctx/internal/app"
	"github.com/MrWong99/mtgctx/internal/config"
	"github.com/MrWong99/mtgctx/internal/mcp"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to an optional YAML configuration file")
	envPath := flag.String("env", ".env", "path to an optional dotenv file")
	debug := flag.Bool("debug", false, "enable debug logging")
	transport := flag.String("transport", "", "MCP transport: stdio or streamable-http")
	listen := flag.String("listen", "", "listen address of the streamable-http transport")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "mtgctx: %v\n", err)
		return 1
	}

	overrides := func(cfg *config.Config) {
		config.ApplyEnv(cfg, os.Getenv)
		if *debug {
			cfg.Server.LogLevel = config.LogDebug
		}
		if *transport != "" {
			cfg.Server.Transport = mcp.Transport(*transport)
		}
		if *listen != "" {
			cfg.Server.ListenAddr = *listen
		}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mtgctx: %v\n", err)
		return 1
	}
	overrides(cfg)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "mtgctx: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// stdout carries the stdio transport, so logs always go to stderr.
	var levels slog.LevelVar
	levels.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &levels})))

	slog.Info("mtgctx starting",
		"version", version,
		"config", *configPath,
		"transport", cfg.Server.Transport,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []app.Option{app.WithVersion(version), app.WithLevelVar(&levels)}
	if *configPath != "" {
		opts = append(opts, app.WithConfigWatch(*configPath, overrides))
	}
	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if *configPath != "" {
		go reloadOnHangup(ctx, application)
	}

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// reloadOnHangup re-reads the config file on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, a *app.App) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := a.Reload(); err != nil {
				slog.Warn("config reload failed", "err", err)
			}
		}
	}
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found", path)
	}
	return cfg, err
}
