// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

// Package logging holds the process-wide zerolog logger of a cowatch node.
//
// Level, format and field names are set once by Init; components derive
// child loggers from it:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	log := logging.WithNode("cluster", nodeID)
//	log.Warn().Err(err).Str("room_id", roomID).Msg("forward failed")
//
// Libraries with their own logging API are bridged by NewSlogLogger (suture)
// and NewWatermillAdapter (watermill NATS pub/sub).
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, format and destination of log output.
type Config struct {
	// Level is one of trace, debug, info, warn, error, fatal, panic, disabled.
	// Empty means info.
	Level string

	// Format is json or console. Empty means json.
	Format string

	// Caller adds file:line to every entry.
	Caller bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig is info-level JSON to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

// levels maps accepted level names, including aliases, to zerolog levels.
var levels = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"panic":    zerolog.PanicLevel,
	"disabled": zerolog.Disabled,
	"off":      zerolog.Disabled,
}

var current atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // components may log before main calls Init
func init() {
	Init(DefaultConfig())
}

// Init replaces the global logger. Loggers already derived with
// WithComponent or WithNode keep their old output.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	var out io.Writer = cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05.000"}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	l := ctx.Logger()
	current.Store(&l)
}

func normalizeLevel(level string) string {
	return strings.ToLower(strings.TrimSpace(level))
}

// parseLevel returns the zerolog level for level, or info when unknown.
func parseLevel(level string) zerolog.Level {
	if l, ok := levels[normalizeLevel(level)]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// ValidLevel reports whether level is an accepted level name.
func ValidLevel(level string) bool {
	_, ok := levels[normalizeLevel(level)]
	return ok
}

func global() *zerolog.Logger {
	return current.Load()
}

// With starts a child logger context from the global logger.
func With() zerolog.Context {
	return global().With()
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}

// WithNode returns a child logger tagged with component and node_id.
func WithNode(component, nodeID string) zerolog.Logger {
	return With().Str("component", component).Str("node_id", nodeID).Logger()
}

func Info() *zerolog.Event { return global().Info() }
func Warn() *zerolog.Event { return global().Warn() }
func Error() *zerolog.Event { return global().Error() }

// Fatal exits the process after writing. Reserved for cmd/server.
func Fatal() *zerolog.Event { return global().Fatal() }

// NewTestLogger returns a JSON logger writing to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
