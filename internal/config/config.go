// Package config provides the configuration schema and loader for the mtgctx
// MCP server.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/mtgctx/internal/mcp"
)

// LogLevel controls log verbosity for the mtgctx server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a [slog.Level]. Unknown and empty levels map to warn.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogInfo:
		return slog.LevelInfo
	case LogError:
		return slog.LevelError
	}
	return slog.LevelWarn
}

// Config is the root configuration structure for mtgctx.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstreams UpstreamsConfig `yaml:"upstreams"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds transport and logging settings.
type ServerConfig struct {
	// Transport selects how MCP clients connect. Default: stdio.
	Transport mcp.Transport `yaml:"transport"`

	// ListenAddr is the TCP address of the streamable HTTP transport
	// (e.g., ":8080"). Ignored for stdio.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: warn.
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeout bounds the graceful HTTP shutdown. Default: 10s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Warm pre-populates the cached datasets at startup.
	Warm bool `yaml:"warm"`
}

// UpstreamsConfig configures the third-party APIs. Empty base URLs select the
// public services.
type UpstreamsConfig struct {
	// UserAgent is sent with every upstream request.
	UserAgent string `yaml:"user_agent"`

	// Timeout bounds a single upstream request. Zero leaves requests bounded
	// only by the caller's context.
	Timeout time.Duration `yaml:"timeout"`

	// MinInterval is the minimum gap between two request starts to the same
	// API. Default: 100ms.
	MinInterval time.Duration `yaml:"min_interval"`

	Scryfall  EndpointConfig `yaml:"scryfall"`
	EDHREC    EndpointConfig `yaml:"edhrec"`
	Spellbook EndpointConfig `yaml:"spellbook"`
	Archidekt EndpointConfig `yaml:"archidekt"`
	Moxfield  EndpointConfig `yaml:"moxfield"`
	Rules     RulesConfig    `yaml:"rules"`
}

// EndpointConfig overrides an upstream's base URL.
type EndpointConfig struct {
	BaseURL string `yaml:"base_url"`
}

// RulesConfig selects the Comprehensive Rules text edition.
type RulesConfig struct {
	// URL of the plain text rules document.
	URL string `yaml:"url"`

	// LastUpdated is the effective date reported with the document. Set it
	// together with URL.
	LastUpdated string `yaml:"last_updated"`
}

// TelemetryConfig configures metrics and traces.
type TelemetryConfig struct {
	// ServiceName is reported in telemetry. Default: "mtgctx".
	ServiceName string `yaml:"service_name"`

	// Metrics enables the /metrics endpoint of the HTTP transport. Nil means
	// enabled.
	Metrics *bool `yaml:"metrics"`
}

// MetricsEnabled reports whether the /metrics endpoint is served.
func (t TelemetryConfig) MetricsEnabled() bool {
	return t.Metrics == nil || *t.Metrics
}

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr      = ":8080"
	DefaultLogLevel        = LogWarn
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMinInterval     = 100 * time.Millisecond
	DefaultServiceName     = "mtgctx"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields of cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = mcp.TransportStdio
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Upstreams.MinInterval == 0 {
		cfg.Upstreams.MinInterval = DefaultMinInterval
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}
