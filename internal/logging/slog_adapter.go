// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// zerologHandler is an slog.Handler writing to zerolog. Group names become
// dotted key prefixes.
type zerologHandler struct {
	logger zerolog.Logger
	fields map[string]interface{}
	group  string
}

// NewSlogLogger returns an slog.Logger that writes through the global logger
// with a component field. The supervisor tree hands it to sutureslog.
func NewSlogLogger(component string) *slog.Logger {
	return slog.New(&zerologHandler{logger: WithComponent(component)})
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	zl := slogToZerolog(level)
	return zl >= zerolog.GlobalLevel() && zl >= h.logger.GetLevel()
}

//nolint:gocritic // slog.Handler takes the record by value
func (h *zerologHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]interface{}, len(h.fields)+r.NumAttrs())
	for k, v := range h.fields {
		fields[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(fields, h.group, a)
		return true
	})
	h.logger.WithLevel(slogToZerolog(r.Level)).Fields(fields).Msg(r.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make(map[string]interface{}, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		fields[k] = v
	}
	for _, a := range attrs {
		flatten(fields, h.group, a)
	}
	return &zerologHandler{logger: h.logger, fields: fields, group: h.group}
}

func (h *zerologHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &zerologHandler{logger: h.logger, fields: h.fields, group: h.group + name + "."}
}

// flatten writes a into dst under prefix, expanding groups into dotted keys.
func flatten(dst map[string]interface{}, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		if a.Key != "" {
			dst[prefix+a.Key] = v.Any()
		}
		return
	}
	if a.Key != "" {
		prefix += a.Key + "."
	}
	for _, member := range v.Group() {
		flatten(dst, prefix, member)
	}
}

// slogToZerolog maps slog levels, including the ones between named levels,
// to the nearest zerolog level at or below.
func slogToZerolog(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	case level >= slog.LevelDebug:
		return zerolog.DebugLevel
	}
	return zerolog.TraceLevel
}
