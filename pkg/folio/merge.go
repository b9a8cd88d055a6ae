package folio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/folio/internal/record"
)

// Merge makes the stored records of type T match objects: stored records
// whose id is not among objects are deleted, then objects are saved. When
// into is non-nil only stored records it accepts are candidates for deletion,
// which lets a caller merge one slice of a type.
func Merge[T Record](ctx context.Context, s *Store, objects []T, into func(T) bool) error {
	return MergeType(ctx, s, record.TagFor[T](), objects, into)
}

// MergeType is Merge for records stored under an explicit tag.
func MergeType[T Record](ctx context.Context, s *Store, tag string, objects []T, into func(T) bool) error {
	stored, err := QueryType[T](s, tag).Filter(into).Execute(ctx)
	if err != nil {
		return fmt.Errorf("folio: merge %s: %w", tag, err)
	}

	keep := make(map[string]struct{}, len(objects))
	for _, o := range objects {
		keep[o.RecordID()] = struct{}{}
	}
	var stale []Identity
	for _, v := range stored {
		if _, ok := keep[v.RecordID()]; !ok {
			stale = append(stale, Identity{Type: tag, ID: v.RecordID()})
		}
	}
	if err := s.Delete(ctx, stale...); err != nil {
		return fmt.Errorf("folio: merge %s: %w", tag, err)
	}
	if err := s.Save(ctx, tagged(tag, objects)...); err != nil {
		return fmt.Errorf("folio: merge %s: %w", tag, err)
	}
	return nil
}

// Migrate rewrites every record of type From as a record of type To. fn is
// applied to each decodable stored record; if any conversion fails nothing
// is written. Converted records are saved, then stored records whose identity
// no longer exists are deleted. From and To may share a tag.
func Migrate[From, To Record](ctx context.Context, s *Store, fn func(From) (To, error)) error {
	return MigrateType(ctx, s, record.TagFor[From](), record.TagFor[To](), fn)
}

// MigrateType is Migrate for records stored under explicit tags.
func MigrateType[From, To Record](ctx context.Context, s *Store, fromTag, toTag string, fn func(From) (To, error)) error {
	old, err := QueryType[From](s, fromTag).Execute(ctx)
	if err != nil {
		return fmt.Errorf("folio: migrate %s: %w", fromTag, err)
	}

	converted := make([]To, 0, len(old))
	for _, v := range old {
		n, err := fn(v)
		if err != nil {
			return fmt.Errorf("folio: migrate %s/%s: %w", fromTag, v.RecordID(), err)
		}
		converted = append(converted, n)
	}
	if err := s.Save(ctx, tagged(toTag, converted)...); err != nil {
		return fmt.Errorf("folio: migrate %s: %w", fromTag, err)
	}

	live := make(map[Identity]struct{}, len(converted))
	for _, n := range converted {
		live[Identity{Type: toTag, ID: n.RecordID()}] = struct{}{}
	}
	var stale []Identity
	for _, v := range old {
		id := Identity{Type: fromTag, ID: v.RecordID()}
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
	}
	if err := s.Delete(ctx, stale...); err != nil {
		return fmt.Errorf("folio: migrate %s: %w", fromTag, err)
	}

	s.logger.Info("folio: migrated",
		slog.String("from", fromTag),
		slog.String("to", toTag),
		slog.Int("records", len(converted)))
	return nil
}

// tagged stores every record under tag, wrapping those whose own tag differs.
func tagged[T Record](tag string, rs []T) []Record {
	out := make([]Record, len(rs))
	for i, r := range rs {
		if record.TagOf(r) == tag {
			out[i] = r
			continue
		}
		out[i] = record.WithTag(tag, r)
	}
	return out
}
