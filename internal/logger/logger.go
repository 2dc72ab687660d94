// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger configures the structured logger used by the command-line
// tools. Output goes to a colorized handler on terminals and to JSON
// otherwise.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Handler selects the output format of a logger.
type Handler int

const (
	JSONHandler Handler = iota
	TextHandler
	DevHandler
)

const (
	DefaultLevel = slog.LevelInfo

	LevelTrace = slog.Level(-8)
)

type ctxKey struct{}

// Option configures New.
type Option func(o *options)

type options struct {
	writer  io.Writer
	level   slog.Level
	handler Handler
}

// WithLevel sets the minimum level that is logged.
func WithLevel(lvl slog.Level) Option {
	return func(o *options) {
		o.level = lvl
	}
}

// WithWriter sets the destination of log records. Defaults to stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithHandler overrides the handler selected from LOG_HANDLER.
func WithHandler(h Handler) Option {
	return func(o *options) {
		o.handler = h
	}
}

// New returns a logger. Without options, the handler is read from the
// LOG_HANDLER environment variable (json, text or dev, defaulting to dev)
// and the level from LOG_LEVEL.
func New(opts ...Option) *slog.Logger {
	o := &options{
		writer:  os.Stderr,
		level:   ParseLevel(os.Getenv("LOG_LEVEL")),
		handler: ParseHandler(os.Getenv("LOG_HANDLER")),
	}
	for _, apply := range opts {
		apply(o)
	}

	replace := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.LevelKey && len(groups) == 0 {
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
				return slog.String(a.Key, "TRACE")
			}
		}
		return a
	}

	switch o.handler {
	case DevHandler:
		return slog.New(tint.NewHandler(o.writer, &tint.Options{
			Level:      o.level,
			TimeFormat: "[15:04:05.000]",
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.LevelKey && len(groups) == 0 {
					if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
						return tint.Attr(13, slog.String(a.Key, "TRC"))
					}
				}
				return a
			},
		}))
	case TextHandler:
		return slog.New(slog.NewTextHandler(o.writer, &slog.HandlerOptions{
			Level:       o.level,
			ReplaceAttr: replace,
		}))
	default:
		return slog.New(slog.NewJSONHandler(o.writer, &slog.HandlerOptions{
			Level:       o.level,
			ReplaceAttr: replace,
		}))
	}
}

// ParseLevel maps a level name to a slog level, falling back to
// DefaultLevel for unknown names.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return DefaultLevel
	}
}

// ParseHandler maps a handler name to a Handler, falling back to
// DevHandler.
func ParseHandler(name string) Handler {
	switch strings.ToLower(name) {
	case "json":
		return JSONHandler
	case "txt", "text":
		return TextHandler
	default:
		return DevHandler
	}
}

// WithContext returns a copy of ctx carrying l.
func WithContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the logger stored in ctx, or a new logger if none is stored.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return New()
}
