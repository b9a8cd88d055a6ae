package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/folio/internal/storage"
)

// Poll is a Source that samples the directory modification time at a fixed
// interval. It suits file systems without inotify support. Files added or
// removed inside the directory also move its modification time, so Poll only
// wakes when the new time carries the commit mark written by
// storage.FS.Touch. A change that is overtaken by a further file operation
// before the next sample is picked up with the following commit.
type Poll struct {
	interval time.Duration
	logger   *slog.Logger
}

// NewPoll creates a polling Source.
func NewPoll(interval time.Duration, logger *slog.Logger) *Poll {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poll{interval: interval, logger: orDefault(logger)}
}

// Watch implements Source.
func (p *Poll) Watch(ctx context.Context, dir string) (<-chan struct{}, error) {
	dir = filepath.Clean(dir)
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	last, _, err := storage.CommitTime(dir)
	if err != nil {
		return nil, err
	}

	out := make(chan struct{}, 1)
	go p.loop(ctx, dir, last, out)
	p.logger.Debug("watch: started", slog.String("dir", dir), slog.String("source", KindPoll))
	return out, nil
}

func (p *Poll) loop(ctx context.Context, dir string, last time.Time, out chan<- struct{}) {
	defer close(out)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("watch: stopped", slog.String("dir", dir))
			return
		case <-ticker.C:
		}

		mod, committed, err := storage.CommitTime(dir)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if ctx.Err() != nil {
				return
			}
			if err := ensureDir(dir); err != nil {
				p.logger.Warn("watch: recreate failed", slog.String("dir", dir), slog.String("error", err.Error()))
				return
			}
			if mod, _, err = storage.CommitTime(dir); err == nil {
				last = mod
			}
			signal(out)
		case err != nil:
			p.logger.Warn("watch: stat failed", slog.String("dir", dir), slog.String("error", err.Error()))
		case committed && !mod.Equal(last):
			last = mod
			signal(out)
		}
	}
}
