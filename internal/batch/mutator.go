// Package batch executes many record writes or deletes concurrently and then
// touches each affected type directory exactly once.
//
// The touch is the commit barrier: it happens only after every item of the
// batch has finished, so an observer woken by it always re-reads a directory
// that already holds the whole batch.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/record"
	"github.com/starford/folio/internal/storage"
)

// Invalidator drops cached copies of a record. It is called before and after
// each item's file operation.
type Invalidator interface {
	Invalidate(id record.Identity)
}

// ItemError reports the failure of one item in a batch. The other items of the
// batch are unaffected.
type ItemError struct {
	Op       string
	Identity record.Identity
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("batch: %s %s: %v", e.Op, e.Identity, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Mutator runs batches against a storage.Provider.
type Mutator struct {
	store  storage.Provider
	limit  int
	logger *slog.Logger
	inval  Invalidator
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithConcurrency bounds the number of file operations in flight per batch.
func WithConcurrency(n int) Option {
	return func(m *Mutator) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mutator) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithInvalidator registers a cache to invalidate on every mutation.
func WithInvalidator(i Invalidator) Option {
	return func(m *Mutator) {
		m.inval = i
	}
}

// DefaultConcurrency is the I/O bound used when none is configured.
func DefaultConcurrency() int {
	return 4 * runtime.GOMAXPROCS(0)
}

// New creates a Mutator over store.
func New(store storage.Provider, opts ...Option) *Mutator {
	m := &Mutator{
		store:  store,
		limit:  DefaultConcurrency(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Save writes every item, then touches each distinct type directory that
// received at least one successful write. Items sharing an identity collapse
// to the last one. The returned error, when non-nil, is a *multierror.Error
// of *ItemError values and touch failures.
func (m *Mutator) Save(ctx context.Context, items []record.Encoded) error {
	items = dedupeEncoded(items)
	ids := make([]record.Identity, len(items))
	for i, it := range items {
		ids[i] = it.Identity
	}
	return m.run(ctx, "save", ids, func(i int) error {
		return m.store.Write(items[i].Type, items[i].ID, items[i].Data)
	})
}

// Delete removes every identity, then touches each distinct type directory.
// Deleting an identity that was never saved is a no-op.
func (m *Mutator) Delete(ctx context.Context, ids []record.Identity) error {
	ids = dedupeIdentities(ids)
	return m.run(ctx, "delete", ids, func(i int) error {
		return m.store.Delete(ids[i].Type, ids[i].ID)
	})
}

// Create writes one item that must not exist yet and touches its directory.
// An existing record fails with an *ItemError matching
// apperr.ErrAlreadyExists and signals nothing.
func (m *Mutator) Create(ctx context.Context, item record.Encoded) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.invalidate(item.Identity)
	err := m.store.Create(item.Type, item.ID, item.Data)
	m.invalidate(item.Identity)
	if err != nil {
		return &ItemError{Op: "create", Identity: item.Identity, Err: err}
	}
	if err := m.store.Touch(item.Type); err != nil {
		return fmt.Errorf("batch: touch %s: %w", item.Type, err)
	}
	m.logger.Debug("batch: created", slog.String("record", item.Identity.String()))
	return nil
}

func (m *Mutator) run(ctx context.Context, op string, ids []record.Identity, do func(i int) error) error {
	if len(ids) == 0 {
		return nil
	}
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(m.limit)
	for i := range ids {
		// Items not yet started when ctx ends are reported, not run.
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		g.Go(func() error {
			m.invalidate(ids[i])
			errs[i] = do(i)
			m.invalidate(ids[i])
			return nil
		})
	}
	_ = g.Wait()

	// Every item has finished: compute the touched directories.
	var merr *multierror.Error
	touched := make(map[string]struct{})
	var dirs []string
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			merr = multierror.Append(merr, &ItemError{Op: op, Identity: ids[i], Err: err})
			continue
		}
		if _, ok := touched[ids[i].Type]; !ok {
			touched[ids[i].Type] = struct{}{}
			dirs = append(dirs, ids[i].Type)
		}
	}
	for _, tag := range dirs {
		if err := m.store.Touch(tag); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("batch: touch %s: %w", tag, err))
		}
	}

	m.logger.Debug("batch: committed",
		slog.String("op", op),
		slog.Int("items", len(ids)),
		slog.Int("failed", failed),
		slog.Any("dirs", dirs))
	return merr.ErrorOrNil()
}

func (m *Mutator) invalidate(id record.Identity) {
	if m.inval != nil {
		m.inval.Invalidate(id)
	}
}

func dedupeEncoded(items []record.Encoded) []record.Encoded {
	pos := make(map[record.Identity]int, len(items))
	out := make([]record.Encoded, 0, len(items))
	for _, it := range items {
		if i, ok := pos[it.Identity]; ok {
			out[i] = it
			continue
		}
		pos[it.Identity] = len(out)
		out = append(out, it)
	}
	return out
}

func dedupeIdentities(ids []record.Identity) []record.Identity {
	seen := make(map[record.Identity]struct{}, len(ids))
	out := make([]record.Identity, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
