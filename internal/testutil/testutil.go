// Package testutil provides shared test helpers for setting up stores and
// reading from live streams.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/folio/internal/notify"
	"github.com/starford/folio/pkg/folio"
)

// StreamTimeout bounds every wait performed by Next.
const StreamTimeout = 5 * time.Second

// Logger returns a logger that discards everything below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TempStore opens a store in a temporary directory that is removed with t.
func TempStore(t *testing.T, opts ...folio.Option) *folio.Store {
	t.Helper()
	opts = append([]folio.Option{folio.WithLogger(Logger())}, opts...)
	s, err := folio.Open(filepath.Join(t.TempDir(), "store"), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// Next waits for the next value of s and fails the test when the stream ends
// or nothing arrives in time.
func Next[T any](t *testing.T, s *notify.Stream[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.C:
		if !ok {
			t.Fatalf("stream closed: %v", s.Err())
		}
		return v
	case <-time.After(StreamTimeout):
		t.Fatal("timed out waiting for stream value")
	}
	var zero T
	return zero
}

// Quiet fails the test when s emits within d.
func Quiet[T any](t *testing.T, s *notify.Stream[T], d time.Duration) {
	t.Helper()
	select {
	case v, ok := <-s.C:
		if ok {
			t.Fatalf("unexpected stream value: %+v", v)
		}
	case <-time.After(d):
	}
}
