package config

import "reflect"

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired names the top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if oldServer != newServer {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Upstreams != new.Upstreams {
		d.RestartRequired = append(d.RestartRequired, "upstreams")
	}
	if !reflect.DeepEqual(old.Telemetry, new.Telemetry) {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}
	return d
}
