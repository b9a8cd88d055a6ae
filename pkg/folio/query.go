package folio

import (
	"context"

	"github.com/starford/folio/internal/notify"
	"github.com/starford/folio/internal/query"
	"github.com/starford/folio/internal/record"
)

// Change is one delta emitted by Observe.
type Change[T any] = notify.Change[T]

// Stream is a live sequence of values; see Observe and ObserveAll.
type Stream[T any] = notify.Stream[T]

// Change kinds.
const (
	Created = notify.Created
	Changed = notify.Changed
	Deleted = notify.Deleted
)

// Get returns the record of type T with the given id. It fails with
// apperr.ErrNotFound or apperr.ErrInvalidSchema.
func Get[T any](ctx context.Context, s *Store, id string) (T, error) {
	return GetType[T](ctx, s, record.TagFor[T](), id)
}

// GetType is Get for records stored under an explicit tag.
func GetType[T any](ctx context.Context, s *Store, tag, id string) (T, error) {
	return ObjectType[T](s, tag, id).Execute(ctx)
}

// Object returns a single-record query handle.
func Object[T any](s *Store, id string) *query.Object[T] {
	return ObjectType[T](s, record.TagFor[T](), id)
}

// ObjectType is Object for records stored under an explicit tag.
func ObjectType[T any](s *Store, tag, id string) *query.Object[T] {
	return query.NewObject[T](s.notiCfg, record.Identity{Type: tag, ID: id}, s.read)
}

// Query returns a query over every record of type T.
func Query[T any](s *Store) *query.Collection[T] {
	return QueryType[T](s, record.TagFor[T]())
}

// QueryType is Query for records stored under an explicit tag.
func QueryType[T any](s *Store, tag string) *query.Collection[T] {
	return query.NewCollection[T](s.notiCfg, tag)
}

// Observe streams the changes of one record of type T. Observers always read
// from disk, never from the cache.
func Observe[T any](ctx context.Context, s *Store, id string) (*Stream[Change[T]], error) {
	return ObserveType[T](ctx, s, record.TagFor[T](), id)
}

// ObserveType is Observe for records stored under an explicit tag.
func ObserveType[T any](ctx context.Context, s *Store, tag, id string) (*Stream[Change[T]], error) {
	return notify.Record[T](ctx, s.notiCfg, record.Identity{Type: tag, ID: id})
}

// ObserveAll streams the full list of records of type T on start and after
// every change of the type directory.
func ObserveAll[T any](ctx context.Context, s *Store) (*Stream[[]T], error) {
	return ObserveAllType[T](ctx, s, record.TagFor[T]())
}

// ObserveAllType is ObserveAll for records stored under an explicit tag.
func ObserveAllType[T any](ctx context.Context, s *Store, tag string) (*Stream[[]T], error) {
	return notify.Collection[T](ctx, s.notiCfg, tag, nil)
}
