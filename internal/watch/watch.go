// Package watch turns changes of a type directory's modification time into
// coalescing wake-up signals.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/folio/internal/apperr"
)

// Source delivers a wake-up each time a directory signals a change.
//
// Watch creates dir when it is missing and registers the watch before it
// returns, so a read performed after Watch cannot miss a later change. The
// returned channel has a buffer of one: wake-ups arriving while one is pending
// coalesce. The channel is closed when ctx is cancelled or the source fails.
type Source interface {
	Watch(ctx context.Context, dir string) (<-chan struct{}, error)
}

// Source kinds accepted by New.
const (
	KindFSNotify = "fsnotify"
	KindPoll     = "poll"
)

// DefaultPollInterval is used by New when no interval is given.
const DefaultPollInterval = 250 * time.Millisecond

// New returns the source registered under kind.
func New(kind string, pollInterval time.Duration, logger *slog.Logger) (Source, error) {
	switch kind {
	case "", KindFSNotify:
		return NewFSNotify(logger), nil
	case KindPoll:
		return NewPoll(pollInterval, logger), nil
	default:
		return nil, fmt.Errorf("watch: unknown change source %q", kind)
	}
}

// signal performs a non-blocking send.
func signal(out chan<- struct{}) {
	select {
	case out <- struct{}{}:
	default:
	}
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("watch: %s: %w", dir, apperr.ErrDirectoryConflict)
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &apperr.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
