// Package logging owns the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
)

var (
	level  = new(slog.LevelVar)
	logger atomic.Pointer[slog.Logger]
)

func init() {
	level.Set(slog.LevelInfo)
	logger.Store(newLogger(os.Stderr))
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// SetLevel changes the minimum level emitted by the process logger.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetOutput redirects the process logger, mainly for tests.
func SetOutput(w io.Writer) {
	logger.Store(newLogger(w))
}
