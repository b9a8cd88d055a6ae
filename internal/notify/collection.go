package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/folio/internal/record"
)

// List reads and decodes every record of tag. Entries that fail to decode are
// skipped and logged at debug level.
func List[T any](cfg Config, tag string) ([]T, error) {
	entries, err := cfg.Store.List(tag)
	if err != nil {
		return nil, fmt.Errorf("notify: list %s: %w", tag, err)
	}
	ser := cfg.serializer()
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		v, err := record.Decode[T](ser, e.Data)
		if err != nil {
			cfg.logger().Debug("notify: skipping undecodable record",
				slog.String("type", tag),
				slog.String("id", e.ID),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Collection observes every record of tag. The first listing is taken before
// Collection returns and emitted first; the list is emitted again on every
// wake-up, whether or not the list changed. shape, when non-nil, is applied
// to each list before it is emitted.
func Collection[T any](ctx context.Context, cfg Config, tag string, shape func([]T) []T) (*Stream[[]T], error) {
	dir, err := cfg.Store.Dir(tag)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	wake, err := cfg.Source.Watch(ctx, dir)
	if err != nil {
		cancel()
		return nil, err
	}

	items, err := List[T](cfg, tag)
	if err != nil {
		cancel()
		return nil, err
	}

	return start(ctx, cancel, wake, func(ctx context.Context, emit emitter[[]T]) error {
		for {
			if shape != nil {
				items = shape(items)
			}
			if !emit(items) {
				return nil
			}

			select {
			case <-ctx.Done():
				return nil
			case _, open := <-wake:
				if !open {
					return nil
				}
			}

			if items, err = List[T](cfg, tag); err != nil {
				return err
			}
		}
	}), nil
}
