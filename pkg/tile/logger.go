package tile

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler drops every record. Enabled returns false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger configures the logger shared by tile and the downloader
// packages. By default nothing is logged; pass nil to restore that.
//
// Levels used:
//   - [slog.LevelDebug]: per-tile fetch failures and skipped tiles
//   - [slog.LevelInfo]: grid resolution and download summaries
//   - [slog.LevelWarn]: degraded results (every tile failed)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
