package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FSNotify is the default Source. It reacts only to attribute changes of the
// watched directory itself, which is what a touch produces; file events inside
// the directory are ignored so a half-written batch never wakes an observer.
type FSNotify struct {
	logger *slog.Logger
}

// NewFSNotify creates an fsnotify-backed Source.
func NewFSNotify(logger *slog.Logger) *FSNotify {
	return &FSNotify{logger: orDefault(logger)}
}

// Watch implements Source.
func (s *FSNotify) Watch(ctx context.Context, dir string) (<-chan struct{}, error) {
	dir = filepath.Clean(dir)
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: new watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch: add %s: %w", dir, err)
	}

	out := make(chan struct{}, 1)
	go s.loop(ctx, w, dir, out)
	s.logger.Debug("watch: started", slog.String("dir", dir), slog.String("source", KindFSNotify))
	return out, nil
}

func (s *FSNotify) loop(ctx context.Context, w *fsnotify.Watcher, dir string, out chan<- struct{}) {
	defer close(out)
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("watch: stopped", slog.String("dir", dir))
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != dir {
				continue
			}

			switch {
			case ev.Op&fsnotify.Chmod != 0:
				signal(out)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// The directory went away (delete-all or reset): recreate it
				// and re-register, then wake the observer to re-read.
				_ = w.Remove(dir)
				if ctx.Err() != nil {
					return
				}
				if err := ensureDir(dir); err != nil {
					s.logger.Warn("watch: recreate failed",
						slog.String("dir", dir),
						slog.String("error", err.Error()))
					return
				}
				if err := w.Add(dir); err != nil {
					s.logger.Warn("watch: re-add failed",
						slog.String("dir", dir),
						slog.String("error", err.Error()))
					return
				}
				s.logger.Debug("watch: directory recreated", slog.String("dir", dir))
				signal(out)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return
			}
			// Overflow drops events; assume something changed.
			s.logger.Warn("watch: error", slog.String("dir", dir), slog.String("error", watchErr.Error()))
			signal(out)
		}
	}
}
