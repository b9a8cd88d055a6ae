package notify

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/batch"
	"github.com/starford/folio/internal/record"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/watch"
)

const waitFor = 5 * time.Second

type widget struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func (w widget) RecordID() string { return w.ID }

// stamped ignores Seen when comparing.
type stamped struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
	Seen  int64  `json:"seen"`
}

func (s stamped) RecordID() string { return s.ID }

func (s stamped) Equal(o stamped) bool { return s.ID == o.ID && s.Value == o.Value }

type env struct {
	cfg Config
	fs  *storage.FS
	mut *batch.Mutator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fs, err := storage.NewFS(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return &env{
		cfg: Config{
			Source:     watch.NewFSNotify(logger),
			Store:      fs,
			Serializer: record.JSON,
			Logger:     logger,
		},
		fs:  fs,
		mut: batch.New(fs, batch.WithLogger(logger)),
	}
}

func (e *env) save(t *testing.T, rs ...record.Record) {
	t.Helper()
	items := make([]record.Encoded, 0, len(rs))
	for _, r := range rs {
		enc, err := record.Encode(record.JSON, r)
		require.NoError(t, err)
		items = append(items, enc)
	}
	require.NoError(t, e.mut.Save(context.Background(), items))
}

func (e *env) delete(t *testing.T, ids ...record.Identity) {
	t.Helper()
	require.NoError(t, e.mut.Delete(context.Background(), ids))
}

func next[T any](t *testing.T, s *Stream[T]) T {
	t.Helper()
	select {
	case v, ok := <-s.C:
		require.True(t, ok, "stream closed: %v", s.Err())
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for emission")
	}
	panic("unreachable")
}

func quiet[T any](t *testing.T, s *Stream[T], d time.Duration) {
	t.Helper()
	select {
	case v, ok := <-s.C:
		if ok {
			t.Fatalf("unexpected emission: %+v", v)
		}
	case <-time.After(d):
	}
}

func TestRecord_Lifecycle(t *testing.T) {
	e := newEnv(t)
	id := record.Identity{Type: "widget", ID: "a"}

	s, err := Record[widget](context.Background(), e.cfg, id)
	require.NoError(t, err)
	defer s.Close()

	e.save(t, widget{ID: "a", Value: 1})
	assert.Equal(t, Change[widget]{Kind: Created, Value: widget{ID: "a", Value: 1}}, next(t, s))

	e.save(t, widget{ID: "a", Value: 2})
	assert.Equal(t, Change[widget]{Kind: Changed, Value: widget{ID: "a", Value: 2}}, next(t, s))

	// Same value again: nothing.
	e.save(t, widget{ID: "a", Value: 2})
	quiet(t, s, 300*time.Millisecond)

	e.delete(t, id)
	assert.Equal(t, Change[widget]{Kind: Deleted, Value: widget{ID: "a", Value: 2}}, next(t, s))

	e.save(t, widget{ID: "a", Value: 3})
	assert.Equal(t, Created, next(t, s).Kind)
}

func TestRecord_SeedEmitsNothing(t *testing.T) {
	e := newEnv(t)
	e.save(t, widget{ID: "a", Value: 1})

	s, err := Record[widget](context.Background(), e.cfg, record.Identity{Type: "widget", ID: "a"})
	require.NoError(t, err)
	defer s.Close()

	quiet(t, s, 200*time.Millisecond)

	e.save(t, widget{ID: "a", Value: 5})
	assert.Equal(t, Changed, next(t, s).Kind)
}

func TestRecord_OtherRecordsDoNotEmit(t *testing.T) {
	e := newEnv(t)
	s, err := Record[widget](context.Background(), e.cfg, record.Identity{Type: "widget", ID: "a"})
	require.NoError(t, err)
	defer s.Close()

	e.save(t, widget{ID: "b", Value: 1})
	quiet(t, s, 300*time.Millisecond)
}

func TestRecord_EqualMethodDedups(t *testing.T) {
	e := newEnv(t)
	e.save(t, stamped{ID: "a", Value: 1, Seen: 1})

	s, err := Record[stamped](context.Background(), e.cfg, record.Identity{Type: "stamped", ID: "a"})
	require.NoError(t, err)
	defer s.Close()

	e.save(t, stamped{ID: "a", Value: 1, Seen: 2})
	quiet(t, s, 300*time.Millisecond)

	e.save(t, stamped{ID: "a", Value: 2, Seen: 3})
	assert.Equal(t, 2, next(t, s).Value.Value)
}

func TestRecord_DecodeFailureEndsStream(t *testing.T) {
	e := newEnv(t)
	e.save(t, widget{ID: "a", Value: 1})

	s, err := Record[widget](context.Background(), e.cfg, record.Identity{Type: "widget", ID: "a"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, e.fs.Write("widget", "a", []byte("{not json")))
	require.NoError(t, e.fs.Touch("widget"))

	select {
	case _, ok := <-s.C:
		require.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("stream did not end")
	}
	<-s.Done()
	assert.ErrorIs(t, s.Err(), apperr.ErrInvalidSchema)
}

func TestRecord_UndecodableSeedIsReturned(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.fs.Write("widget", "a", []byte("{not json")))

	_, err := Record[widget](context.Background(), e.cfg, record.Identity{Type: "widget", ID: "a"})
	assert.ErrorIs(t, err, apperr.ErrInvalidSchema)
}

func TestRecord_CloseEndsStream(t *testing.T) {
	e := newEnv(t)
	s, err := Record[widget](context.Background(), e.cfg, record.Identity{Type: "widget", ID: "a"})
	require.NoError(t, err)

	s.Close()
	_, ok := <-s.C
	assert.False(t, ok)
	assert.NoError(t, s.Err())
}

func TestRecord_CloseStopsListener(t *testing.T) {
	e := newEnv(t)
	dir, err := e.fs.Dir("widget")
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		s, err := Record[widget](context.Background(), e.cfg, record.Identity{Type: "widget", ID: "a"})
		require.NoError(t, err)
		s.Close()

		require.NoError(t, os.RemoveAll(dir))
		time.Sleep(5 * time.Millisecond)
		_, err = os.Stat(dir)
		require.ErrorIs(t, err, fs.ErrNotExist, "run %d: directory recreated after Close", i)
	}
}

func TestCollection_InitialListing(t *testing.T) {
	e := newEnv(t)
	e.save(t, widget{ID: "a"}, widget{ID: "b"}, widget{ID: "c"})

	s, err := Collection[widget](context.Background(), e.cfg, "widget", nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Len(t, next(t, s), 3)
}

func TestCollection_ReEmitsOnEveryWakeup(t *testing.T) {
	e := newEnv(t)
	e.save(t, widget{ID: "a"})

	s, err := Collection[widget](context.Background(), e.cfg, "widget", nil)
	require.NoError(t, err)
	defer s.Close()

	first := next(t, s)
	require.NoError(t, e.fs.Touch("widget"))
	assert.Equal(t, first, next(t, s))
}

func TestCollection_SeesWholeBatch(t *testing.T) {
	e := newEnv(t)
	s, err := Collection[widget](context.Background(), e.cfg, "widget", nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, next(t, s))

	batchOf := make([]record.Record, 50)
	for i := range batchOf {
		batchOf[i] = widget{ID: string(rune('A' + i%26)) + string(rune('a' + i/26)), Value: i}
	}
	e.save(t, batchOf...)
	assert.Len(t, next(t, s), 50)
}

func TestCollection_SkipsUndecodable(t *testing.T) {
	e := newEnv(t)
	e.save(t, widget{ID: "a", Value: 1})
	require.NoError(t, e.fs.Write("widget", "bad", []byte("{")))

	s, err := Collection[widget](context.Background(), e.cfg, "widget", nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []widget{{ID: "a", Value: 1}}, next(t, s))
}

func TestCollection_Shape(t *testing.T) {
	e := newEnv(t)
	e.save(t, widget{ID: "a", Value: 1}, widget{ID: "b", Value: 3}, widget{ID: "c", Value: 2})

	desc := func(ws []widget) []widget {
		slices.SortFunc(ws, func(x, y widget) int { return y.Value - x.Value })
		return ws
	}
	s, err := Collection(context.Background(), e.cfg, "widget", desc)
	require.NoError(t, err)
	defer s.Close()

	got := next(t, s)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestMap(t *testing.T) {
	e := newEnv(t)
	e.save(t, widget{ID: "a"}, widget{ID: "b"})

	s, err := Collection[widget](context.Background(), e.cfg, "widget", nil)
	require.NoError(t, err)
	counts := Map(s, func(ws []widget) int { return len(ws) })
	defer counts.Close()

	assert.Equal(t, 2, next(t, counts))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "created", Created.String())
	assert.Equal(t, "changed", Changed.String())
	assert.Equal(t, "deleted", Deleted.String())
}
