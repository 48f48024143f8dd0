package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/mtgctx/internal/mcp"
)

// Environment variables read by [ApplyEnv].
const (
	EnvDebug      = "MTGCTX_DEBUG"
	EnvLogLevel   = "MTGCTX_LOG_LEVEL"
	EnvTransport  = "MTGCTX_TRANSPORT"
	EnvListenAddr = "MTGCTX_LISTEN_ADDR"
	EnvUserAgent  = "MTGCTX_USER_AGENT"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads environment variables from the dotenv file at path.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: load %q: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with the MTGCTX_* variables returned by getenv.
// A truthy MTGCTX_DEBUG wins over MTGCTX_LOG_LEVEL.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv(EnvLogLevel); v != "" {
		cfg.Server.LogLevel = LogLevel(strings.ToLower(v))
	}
	if debug, err := strconv.ParseBool(getenv(EnvDebug)); err == nil && debug {
		cfg.Server.LogLevel = LogDebug
	}
	if v := getenv(EnvTransport); v != "" {
		cfg.Server.Transport = mcp.Transport(v)
	}
	if v := getenv(EnvListenAddr); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := getenv(EnvUserAgent); v != "" {
		cfg.Upstreams.UserAgent = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.Transport != "" && !cfg.Server.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("server.transport %q is invalid; valid values: stdio, streamable-http", cfg.Server.Transport))
	}
	if cfg.Server.Transport == mcp.TransportStreamableHTTP && cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required for the streamable-http transport"))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be non-negative, got %s", cfg.Server.ShutdownTimeout))
	}

	// Upstreams
	up := cfg.Upstreams
	if up.Timeout < 0 {
		errs = append(errs, fmt.Errorf("upstreams.timeout must be non-negative, got %s", up.Timeout))
	}
	if up.MinInterval < 0 {
		errs = append(errs, fmt.Errorf("upstreams.min_interval must be non-negative, got %s", up.MinInterval))
	}
	for field, raw := range map[string]string{
		"upstreams.scryfall.base_url":  up.Scryfall.BaseURL,
		"upstreams.edhrec.base_url":    up.EDHREC.BaseURL,
		"upstreams.spellbook.base_url": up.Spellbook.BaseURL,
		"upstreams.archidekt.base_url": up.Archidekt.BaseURL,
		"upstreams.moxfield.base_url":  up.Moxfield.BaseURL,
		"upstreams.rules.url":          up.Rules.URL,
	} {
		if err := validateURL(field, raw); err != nil {
			errs = append(errs, err)
		}
	}
	if up.Rules.URL != "" && up.Rules.LastUpdated == "" {
		errs = append(errs, errors.New("upstreams.rules.last_updated is required when upstreams.rules.url is set"))
	}

	return errors.Join(errs...)
}

func validateURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s %q must be an absolute http(s) URL", field, raw)
	}
	return nil
}
