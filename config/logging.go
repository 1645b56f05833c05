// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger returns the logger described by l.
func (l Logging) Logger() *slog.Logger {
	var w io.Writer = os.Stderr
	if strings.ToLower(l.Output) == "stdout" {
		w = os.Stdout
	}
	return l.newLogger(w)
}

func (l Logging) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(l.Level)}
	var h slog.Handler
	if strings.ToLower(l.Format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h.WithAttrs([]slog.Attr{slog.String("service", "owbridge")}))
}

// parseLevel defaults to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
