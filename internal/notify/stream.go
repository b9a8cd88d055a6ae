// Package notify turns directory wake-ups into typed change streams: deltas
// for a single record and full re-listings for a whole type.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/folio/internal/record"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/watch"
)

// Config holds the collaborators shared by every notifier.
type Config struct {
	Source     watch.Source
	Store      storage.Provider
	Serializer record.Serializer
	Logger     *slog.Logger
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c Config) serializer() record.Serializer {
	if c.Serializer == nil {
		return record.JSON
	}
	return c.Serializer
}

// Stream is a live sequence of values. C is closed when the stream ends;
// Err then reports why, or nil after Close or context cancellation.
type Stream[T any] struct {
	C <-chan T

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Err returns the terminal error, if any.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the stream has fully stopped.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}

// Close stops the stream and its directory listener and waits for both.
// Once Close returns the listener no longer recreates or watches the
// directory.
func (s *Stream[T]) Close() {
	s.cancel()
	<-s.done
}

// emitter sends a value unless the stream is stopping. It reports whether the
// value was delivered.
type emitter[T any] func(v T) bool

// start runs fn in its own goroutine until it returns its terminal error.
// cancel must cancel ctx, which also stops the listener delivering wake; the
// stream is only done once wake has been closed, so a closed stream never
// acts on its directory again.
func start[T any](ctx context.Context, cancel context.CancelFunc, wake <-chan struct{}, fn func(ctx context.Context, emit emitter[T]) error) *Stream[T] {
	out := make(chan T)
	s := &Stream[T]{C: out, cancel: cancel, done: make(chan struct{})}

	emit := func(v T) bool {
		select {
		case out <- v:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(s.done)
		defer close(out)
		err := fn(ctx, emit)
		if err != nil && ctx.Err() == nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
		cancel()
		for range wake {
		}
	}()
	return s
}

// Map returns a stream applying fn to every value of src. Closing the result
// closes src.
func Map[T, U any](src *Stream[T], fn func(T) U) *Stream[U] {
	out := make(chan U)
	s := &Stream[U]{C: out, cancel: src.cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer close(out)
		for v := range src.C {
			select {
			case out <- fn(v):
			case <-src.done:
				return
			}
		}
		<-src.done
		s.mu.Lock()
		s.err = src.Err()
		s.mu.Unlock()
	}()
	return s
}
