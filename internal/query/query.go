// Package query builds one-shot and live queries over the records of a type.
package query

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/notify"
	"github.com/starford/folio/internal/record"
)

// Collection queries every record of one type. It holds a single predicate
// slot and a single comparator slot; Filter and Sort replace them.
type Collection[T any] struct {
	cfg    notify.Config
	tag    string
	filter func(T) bool
	cmp    func(a, b T) int
}

// NewCollection creates a query over the records stored under tag.
func NewCollection[T any](cfg notify.Config, tag string) *Collection[T] {
	return &Collection[T]{cfg: cfg, tag: tag}
}

// Tag returns the type tag being queried.
func (q *Collection[T]) Tag() string { return q.tag }

// Filter sets the predicate, replacing any previous one. nil clears it.
func (q *Collection[T]) Filter(pred func(T) bool) *Collection[T] {
	q.filter = pred
	return q
}

// Sort sets the comparator, replacing any previous one. nil clears it. The
// sort is stable; without a comparator records come in file-name order.
func (q *Collection[T]) Sort(cmp func(a, b T) int) *Collection[T] {
	q.cmp = cmp
	return q
}

// Execute lists, decodes, filters and sorts the records once. Records that
// fail to decode are left out.
func (q *Collection[T]) Execute(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := notify.List[T](q.cfg, q.tag)
	if err != nil {
		return nil, err
	}
	return shape(items, q.filter, q.cmp), nil
}

// Observe streams the query result on start and after every change of the
// type directory. The predicate and comparator in place at the time of the
// call are used for the lifetime of the stream.
func (q *Collection[T]) Observe(ctx context.Context) (*notify.Stream[[]T], error) {
	filter, cmp := q.filter, q.cmp
	return notify.Collection(ctx, q.cfg, q.tag, func(items []T) []T {
		return shape(items, filter, cmp)
	})
}

func shape[T any](items []T, filter func(T) bool, cmp func(a, b T) int) []T {
	if filter != nil {
		items = slices.DeleteFunc(items, func(v T) bool { return !filter(v) })
	}
	if cmp != nil {
		slices.SortStableFunc(items, cmp)
	}
	return items
}

// ReadFunc returns the stored bytes of a record.
type ReadFunc func(id record.Identity) ([]byte, error)

// Object queries a single record.
type Object[T any] struct {
	cfg  notify.Config
	id   record.Identity
	read ReadFunc
}

// NewObject creates a query for id. read may front the store with a cache;
// nil reads the store directly.
func NewObject[T any](cfg notify.Config, id record.Identity, read ReadFunc) *Object[T] {
	if read == nil {
		read = func(id record.Identity) ([]byte, error) {
			return cfg.Store.Read(id.Type, id.ID)
		}
	}
	return &Object[T]{cfg: cfg, id: id, read: read}
}

// Identity returns the queried identity.
func (o *Object[T]) Identity() record.Identity { return o.id }

// Execute fetches the record. It fails with apperr.ErrNotFound when nothing is
// stored and with apperr.ErrInvalidSchema when the stored bytes do not decode.
func (o *Object[T]) Execute(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	data, err := o.read(o.id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return zero, fmt.Errorf("query: %s: %w", o.id, apperr.ErrNotFound)
		}
		return zero, err
	}
	ser := o.cfg.Serializer
	if ser == nil {
		ser = record.JSON
	}
	v, err := record.Decode[T](ser, data)
	if err != nil {
		return zero, &apperr.SchemaError{Path: o.id.String(), Err: err}
	}
	return v, nil
}

// Observe streams the record's changes.
func (o *Object[T]) Observe(ctx context.Context) (*notify.Stream[notify.Change[T]], error) {
	return notify.Record[T](ctx, o.cfg, o.id)
}
