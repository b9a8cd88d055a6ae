// Package folio is an embedded, file-backed record store. Every record is one
// file under a directory named after its type; the directory modification time
// is the only change signal, and observers re-read the directory when it moves.
package folio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/starford/folio/internal/batch"
	"github.com/starford/folio/internal/cache"
	"github.com/starford/folio/internal/notify"
	"github.com/starford/folio/internal/record"
	"github.com/starford/folio/internal/relation"
	"github.com/starford/folio/internal/storage"
	"github.com/starford/folio/internal/watch"
)

// Record is anything the store can persist.
type Record = record.Record

// Identity addresses one stored record.
type Identity = record.Identity

// Store is safe for concurrent use. It holds no locks of its own: writes are
// atomic file replacements and every batch ends with one touch per directory.
type Store struct {
	fs      *storage.FS
	ser     record.Serializer
	src     watch.Source
	mut     *batch.Mutator
	cache   *cache.LRU
	logger  *slog.Logger
	notiCfg notify.Config
}

// Open opens the store rooted at root, creating the directory when missing.
// A file occupying the root or a pre-declared type directory fails with
// apperr.ErrDirectoryConflict.
func Open(root string, opts ...Option) (*Store, error) {
	o := options{
		serializer: record.JSON,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.serializer == nil {
		o.serializer = record.JSON
	}
	if o.source == nil {
		o.source = watch.NewFSNotify(o.logger)
	}

	fs, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("folio: open: %w", err)
	}
	for _, tag := range o.types {
		if err := fs.EnsureDir(tag); err != nil {
			return nil, fmt.Errorf("folio: open: type %s: %w", tag, err)
		}
	}

	c, err := cache.New(o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("folio: open: cache: %w", err)
	}

	s := &Store{
		fs:     fs,
		ser:    o.serializer,
		src:    o.source,
		cache:  c,
		logger: o.logger,
	}
	s.mut = batch.New(fs,
		batch.WithConcurrency(o.concurrency),
		batch.WithLogger(o.logger),
		batch.WithInvalidator(c),
	)
	s.notiCfg = notify.Config{
		Source:     o.source,
		Store:      fs,
		Serializer: o.serializer,
		Logger:     o.logger,
	}

	o.logger.Debug("folio: opened",
		slog.String("root", fs.Root()),
		slog.String("serializer", o.serializer.Name()),
		slog.Int("cache_size", o.cacheSize))
	return s, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string { return s.fs.Root() }

// Serializer returns the record format in use.
func (s *Store) Serializer() record.Serializer { return s.ser }

// Types returns the type tags that currently have a directory.
func (s *Store) Types() ([]string, error) {
	return s.fs.Types()
}

// Save persists records together with every record they embed through
// relation.Relational, in one batch. Failures are reported per record in a
// *multierror.Error; records that were written stay written.
func (s *Store) Save(ctx context.Context, records ...Record) error {
	flat := relation.Flatten(records...)

	var merr *multierror.Error
	items := make([]record.Encoded, 0, len(flat))
	for _, r := range flat {
		enc, err := record.Encode(s.ser, r)
		if err != nil {
			merr = multierror.Append(merr, &batch.ItemError{Op: "encode", Identity: record.Of(r), Err: err})
			continue
		}
		items = append(items, enc)
	}

	if err := s.mut.Save(ctx, items); err != nil {
		merr = multierror.Append(merr, err)
	}
	return merr.ErrorOrNil()
}

// Create saves a single record only when nothing is stored under its
// identity; otherwise it fails with apperr.ErrAlreadyExists. Embedded records
// are not cascaded.
func (s *Store) Create(ctx context.Context, r Record) error {
	enc, err := record.Encode(s.ser, r)
	if err != nil {
		return &batch.ItemError{Op: "encode", Identity: record.Of(r), Err: err}
	}
	return s.mut.Create(ctx, enc)
}

// Delete removes the given identities. Identities that were never saved are
// ignored.
func (s *Store) Delete(ctx context.Context, ids ...Identity) error {
	return s.mut.Delete(ctx, ids)
}

// DeleteRecords removes the given records. Embedded records are kept.
func (s *Store) DeleteRecords(ctx context.Context, records ...Record) error {
	ids := make([]Identity, 0, len(records))
	for _, r := range records {
		ids = append(ids, record.Of(r))
	}
	return s.Delete(ctx, ids...)
}

// DeleteAll removes every record of tag. Observers of the type see an empty
// directory.
func (s *Store) DeleteAll(ctx context.Context, tag string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.InvalidateType(tag)
	defer s.cache.InvalidateType(tag)
	if err := s.fs.RemoveDir(tag); err != nil {
		return fmt.Errorf("folio: delete all %s: %w", tag, err)
	}
	s.logger.Debug("folio: deleted type", slog.String("type", tag))
	return nil
}

// Reset deletes and recreates the store root. It is destructive and
// synchronous.
func (s *Store) Reset() error {
	s.cache.Purge()
	defer s.cache.Purge()
	if err := s.fs.Reset(); err != nil {
		return fmt.Errorf("folio: reset: %w", err)
	}
	s.logger.Info("folio: reset", slog.String("root", s.fs.Root()))
	return nil
}

// Bytes returns the stored encoding of a record. It fails with
// apperr.ErrNotFound when nothing is stored.
func (s *Store) Bytes(ctx context.Context, id Identity) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read(id)
}

// read serves single-record reads through the cache.
func (s *Store) read(id Identity) ([]byte, error) {
	if data, ok := s.cache.Get(id); ok {
		return data, nil
	}
	epoch := s.cache.Epoch()
	data, err := s.fs.Read(id.Type, id.ID)
	if err != nil {
		return nil, err
	}
	s.cache.Fill(id, data, epoch)
	return data, nil
}
