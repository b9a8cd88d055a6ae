package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/record"
)

// Kind classifies a single-record change.
type Kind int

const (
	Created Kind = iota + 1
	Changed
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is one delta of an observed record. For Deleted, Value holds the
// last value seen before the record disappeared.
type Change[T any] struct {
	Kind  Kind
	Value T
}

// Record observes one identity. The record is read once before Record
// returns to seed the state; seeding emits nothing. After that every wake-up
// re-reads the record and emits at most one Change:
//
//	absent  -> present           Created
//	present -> present (differs) Changed
//	present -> absent            Deleted
//
// Equal values produce nothing. A record that fails to decode ends the stream
// with an error matching apperr.ErrInvalidSchema; a seed that fails to decode
// is returned directly.
func Record[T any](ctx context.Context, cfg Config, id record.Identity) (*Stream[Change[T]], error) {
	dir, err := cfg.Store.Dir(id.Type)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	// Registered before the seed read so no change in between is lost.
	wake, err := cfg.Source.Watch(ctx, dir)
	if err != nil {
		cancel()
		return nil, err
	}

	logger := cfg.logger()
	ser := cfg.serializer()

	cur, present, err := readRecord[T](cfg, ser, id)
	if err != nil {
		cancel()
		return nil, err
	}

	return start(ctx, cancel, wake, func(ctx context.Context, emit emitter[Change[T]]) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, open := <-wake:
				if !open {
					return nil
				}
			}

			v, ok, err := readRecord[T](cfg, ser, id)
			if err != nil {
				logger.Debug("notify: record stream ended",
					slog.String("record", id.String()),
					slog.String("error", err.Error()))
				return err
			}

			var change *Change[T]
			switch {
			case !present && ok:
				change = &Change[T]{Kind: Created, Value: v}
			case present && ok && !equal(cur, v):
				change = &Change[T]{Kind: Changed, Value: v}
			case present && !ok:
				change = &Change[T]{Kind: Deleted, Value: cur}
			}
			cur, present = v, ok

			if change != nil && !emit(*change) {
				return nil
			}
		}
	}), nil
}

func readRecord[T any](cfg Config, ser record.Serializer, id record.Identity) (T, bool, error) {
	var zero T
	data, err := cfg.Store.Read(id.Type, id.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("notify: read %s: %w", id, err)
	}
	v, err := record.Decode[T](ser, data)
	if err != nil {
		return zero, false, &apperr.SchemaError{Path: id.String(), Err: err}
	}
	return v, true, nil
}

// equal compares with an Equal method when T has one.
func equal[T any](a, b T) bool {
	if e, ok := any(a).(interface{ Equal(T) bool }); ok {
		return e.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}
