// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"log/slog"
	"sync/atomic"
)

var root atomic.Value

func init() {
	root.Store(NewLogger(DiscardHandler()))
}

// SetDefault sets the default global logger
func SetDefault(l Logger) {
	root.Store(l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

// Root returns the root logger
func Root() Logger {
	return root.Load().(Logger)
}

// WithContext returns a logger that prefixes ctx to every record and always
// writes through the current root, so package level loggers pick up
// SetDefault calls made after package initialization.
func WithContext(ctx ...any) Logger {
	return &contextLogger{ctx: ctx}
}

type contextLogger struct {
	ctx []any
}

func (l *contextLogger) merge(attrs []any) []any {
	merged := make([]any, 0, len(l.ctx)+len(attrs))
	return append(append(merged, l.ctx...), attrs...)
}

func (l *contextLogger) With(ctx ...any) Logger {
	return &contextLogger{ctx: l.merge(ctx)}
}

func (l *contextLogger) Write(level slog.Level, msg string, attrs ...any) {
	Root().Write(level, msg, l.merge(attrs)...)
}

func (l *contextLogger) Log(level slog.Level, msg string, attrs ...any) {
	l.Write(level, msg, attrs...)
}

func (l *contextLogger) Enabled(ctx context.Context, level slog.Level) bool {
	return Root().Enabled(ctx, level)
}

func (l *contextLogger) Handler() slog.Handler {
	return Root().Handler()
}

func (l *contextLogger) Trace(msg string, ctx ...any) { l.Write(LevelTrace, msg, ctx...) }
func (l *contextLogger) Debug(msg string, ctx ...any) { l.Write(LevelDebug, msg, ctx...) }
func (l *contextLogger) Info(msg string, ctx ...any)  { l.Write(LevelInfo, msg, ctx...) }
func (l *contextLogger) Warn(msg string, ctx ...any)  { l.Write(LevelWarn, msg, ctx...) }
func (l *contextLogger) Error(msg string, ctx ...any) { l.Write(LevelError, msg, ctx...) }
func (l *contextLogger) Crit(msg string, ctx ...any)  { l.Write(LevelCrit, msg, ctx...) }

// Trace is a convenient alias for Root().Trace
func Trace(msg string, ctx ...any) { Root().Write(LevelTrace, msg, ctx...) }

// Debug is a convenient alias for Root().Debug
func Debug(msg string, ctx ...any) { Root().Write(LevelDebug, msg, ctx...) }

// Info is a convenient alias for Root().Info
func Info(msg string, ctx ...any) { Root().Write(LevelInfo, msg, ctx...) }

// Warn is a convenient alias for Root().Warn
func Warn(msg string, ctx ...any) { Root().Write(LevelWarn, msg, ctx...) }

// Error is a convenient alias for Root().Error
func Error(msg string, ctx ...any) { Root().Write(LevelError, msg, ctx...) }
