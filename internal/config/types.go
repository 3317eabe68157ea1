// Package config loads sqlsandbox configuration.
//
// Values are layered, lowest to highest precedence: built-in defaults,
// sqlsandbox.yaml, a .env file, SQLSANDBOX_* environment variables, and
// command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/sqlsandbox/pkg/adapter"
)

// Config holds all sqlsandbox configuration.
type Config struct {
	Engine   EngineConfig `koanf:"engine"`
	Fixtures []string     `koanf:"fixtures"`
	Output   string       `koanf:"output" validate:"oneof=auto table text json csv md markdown"`
	Verbose  bool         `koanf:"verbose"`
	Log      LogConfig    `koanf:"log"`
	Server   ServerConfig `koanf:"server"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// EngineConfig selects the execution bundle and its limits.
type EngineConfig struct {
	// Bundle is "duckdb" or "sqlite"; empty picks the best one compiled in.
	Bundle string `koanf:"bundle" validate:"omitempty,oneof=duckdb sqlite"`

	// Path of the database file; empty or ":memory:" stays in memory.
	Path string `koanf:"path"`

	// Params are bundle-specific (duckdb: extensions/secrets/settings,
	// sqlite: foreign_keys/busy_timeout/pragmas).
	Params map[string]any `koanf:"params"`

	InitTimeout  time.Duration `koanf:"init_timeout" validate:"gte=0"`
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"gte=0"`
}

// AdapterConfig returns the bundle config for the engine manager.
func (e EngineConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Type:   e.Bundle,
		Path:   e.Path,
		Params: e.Params,
	}
}

// LogConfig configures console and file logging.
type LogConfig struct {
	Level   string `koanf:"level" validate:"oneof=debug info warn error"`
	Format  string `koanf:"format" validate:"oneof=text json"`
	NoColor bool   `koanf:"no_color"`

	// File enables a rotating JSON log file.
	File       string `koanf:"file"`
	FileLevel  string `koanf:"file_level" validate:"oneof=debug info warn error"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
}

// ServerConfig configures `sqlsandbox serve`.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required"`

	// SessionSecret signs the session cookie. Empty generates a random key
	// at startup, so cookies do not survive restarts.
	SessionSecret string `koanf:"session_secret"`
	SecureCookies bool   `koanf:"secure_cookies"`

	// JWTSecret enables bearer authentication (HS256) when set.
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	// IdleTimeout closes sessions that have not been used for this long.
	IdleTimeout time.Duration `koanf:"idle_timeout" validate:"gt=0"`

	// SweepSchedule is the cron spec of the idle session sweeper.
	SweepSchedule string `koanf:"sweep_schedule" validate:"required"`

	// MaxSessions caps concurrently open sessions; zero means no limit.
	MaxSessions int `koanf:"max_sessions" validate:"gte=0"`

	// WatchFixtures reloads the fixture catalog when files change.
	WatchFixtures bool `koanf:"watch_fixtures"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}
