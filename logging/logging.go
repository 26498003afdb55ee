// Package logging provides the package-scoped structured loggers used
// across the VFS, built on log/slog in place of ad-hoc Debugf/Logf
// helpers.
package logging

import (
	"log/slog"
	"os"
	"sync"
)

var (
	mu   sync.Mutex
	base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
)

// SetBase replaces the base logger all components derive from, e.g. to
// install a JSON handler or raise the level in tests.
func SetBase(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

// Logger returns a logger scoped to component, e.g. logging.Logger("mount").
func Logger(component string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base.With("component", component)
}
