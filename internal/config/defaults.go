package config

import "time"

// Default configuration values.
const (
	DefaultConfigFile      = "sqlsandbox.yaml"
	DefaultOutput          = "table"
	DefaultLogLevel        = "info"
	DefaultAddr            = "127.0.0.1:8790"
	DefaultIdleTimeout     = 30 * time.Minute
	DefaultSweepSchedule   = "@every 1m"
	DefaultInitTimeout     = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultFixturePattern  = "fixtures/**/*.yaml"
	EnvPrefix              = "SQLSANDBOX_"
)

func defaults() map[string]any {
	return map[string]any{
		"engine.bundle":           "",
		"engine.path":             ":memory:",
		"engine.init_timeout":     DefaultInitTimeout.String(),
		"engine.query_timeout":    "0s",
		"fixtures":                []string{DefaultFixturePattern},
		"output":                  DefaultOutput,
		"verbose":                 false,
		"log.level":               DefaultLogLevel,
		"log.format":              "text",
		"log.file_level":          "debug",
		"log.max_size_mb":         10,
		"log.max_backups":         3,
		"log.max_age_days":        28,
		"server.addr":             DefaultAddr,
		"server.idle_timeout":     DefaultIdleTimeout.String(),
		"server.sweep_schedule":   DefaultSweepSchedule,
		"server.max_sessions":     0,
		"server.watch_fixtures":   true,
		"server.shutdown_timeout": DefaultShutdownTimeout.String(),
	}
}
