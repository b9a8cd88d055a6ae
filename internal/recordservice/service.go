// Package recordservice exposes documents stored in a folio store to the HTTP
// API, the MCP server and the CLI.
package recordservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/query"
	"github.com/starford/folio/internal/record"
	"github.com/starford/folio/pkg/folio"
)

// ListOptions narrows and orders a listing.
type ListOptions struct {
	Filter string
	Sort   string
	Limit  int
	Offset int
}

// Service coordinates document operations on a store.
type Service struct {
	store  *folio.Store
	logger *slog.Logger
}

// New creates a new record service.
func New(store *folio.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Store returns the underlying store.
func (s *Service) Store() *folio.Store { return s.store }

// Get returns one document with the checksum of its stored bytes.
func (s *Service) Get(ctx context.Context, typ, id string) (*models.Envelope, error) {
	data, err := s.store.Bytes(ctx, record.Identity{Type: typ, ID: id})
	if err != nil {
		return nil, err
	}
	doc, err := record.Decode[models.Document](s.store.Serializer(), data)
	if err != nil {
		return nil, &apperr.SchemaError{Path: typ + "/" + id, Err: err}
	}
	return &models.Envelope{
		Type:     typ,
		ID:       id,
		Checksum: checksum.Sum(data),
		Data:     doc,
	}, nil
}

// List returns the documents of typ matching opts and the total number of
// matches before paging.
func (s *Service) List(ctx context.Context, typ string, opts ListOptions) ([]models.Envelope, int, error) {
	q, err := s.Query(typ, opts.Filter, opts.Sort)
	if err != nil {
		return nil, 0, err
	}
	docs, err := q.Execute(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := len(docs)
	docs = page(docs, opts.Limit, opts.Offset)

	items := make([]models.Envelope, len(docs))
	for i, d := range docs {
		items[i] = models.Envelope{Type: typ, ID: d.RecordID(), Data: d}
	}
	return items, total, nil
}

// Query compiles filter and sort expressions into a document query on typ.
func (s *Service) Query(typ, filter, sort string) (*query.Collection[models.Document], error) {
	f, err := parser.ParseFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidQuery, err)
	}
	keys, err := parser.ParseSort(sort)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidQuery, err)
	}

	q := folio.QueryType[models.Document](s.store, typ)
	if !f.Empty() {
		q.Filter(func(d models.Document) bool { return f.Match(d) })
	}
	if c := parser.Comparator(keys); c != nil {
		q.Sort(func(a, b models.Document) int { return c(a, b) })
	}
	return q, nil
}

// Create stores a new document. A missing id is generated. An id that is
// already taken fails with apperr.ErrAlreadyExists.
func (s *Service) Create(ctx context.Context, typ string, doc models.Document) (*models.Envelope, error) {
	doc = withID(doc)
	id := doc.RecordID()
	if err := s.store.Create(ctx, record.WithTag(typ, doc)); err != nil {
		return nil, err
	}
	s.logger.Debug("recordservice: created", slog.String("type", typ), slog.String("id", id))
	return s.Get(ctx, typ, id)
}

// Update replaces a document with optimistic concurrency: a non-empty ifMatch
// must match the checksum of the stored bytes (see checksum.Matches).
func (s *Service) Update(ctx context.Context, typ, id string, doc models.Document, ifMatch string) (*models.Envelope, error) {
	existing, err := s.store.Bytes(ctx, record.Identity{Type: typ, ID: id})
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && !checksum.Matches(ifMatch, existing) {
		return nil, apperr.ErrConflict
	}
	if doc == nil {
		doc = models.Document{}
	}
	if other := doc.RecordID(); other != "" && other != id {
		return nil, fmt.Errorf("%w: body id %q does not match %q", apperr.ErrInvalidID, other, id)
	}
	doc[models.IDField] = id
	if err := s.store.Save(ctx, record.WithTag(typ, doc)); err != nil {
		return nil, err
	}
	s.logger.Debug("recordservice: updated", slog.String("type", typ), slog.String("id", id))
	return s.Get(ctx, typ, id)
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Service) Delete(ctx context.Context, typ, id string) error {
	return s.store.Delete(ctx, record.Identity{Type: typ, ID: id})
}

// DeleteAll removes every document of typ.
func (s *Service) DeleteAll(ctx context.Context, typ string) error {
	return s.store.DeleteAll(ctx, typ)
}

// SaveBatch stores docs in one batch, generating missing ids, and returns the
// ids in input order. Per-document failures are returned together; the other
// documents stay saved.
func (s *Service) SaveBatch(ctx context.Context, typ string, docs []models.Document) ([]string, error) {
	ids := make([]string, len(docs))
	recs := make([]record.Record, len(docs))
	for i, d := range docs {
		d = withID(d)
		ids[i] = d.RecordID()
		recs[i] = record.WithTag(typ, d)
	}
	err := s.store.Save(ctx, recs...)
	s.logger.Debug("recordservice: batch saved",
		slog.String("type", typ),
		slog.Int("count", len(docs)))
	return ids, err
}

// Types lists the type tags in the store with their document counts.
func (s *Service) Types(ctx context.Context) ([]models.Summary, error) {
	tags, err := s.store.Types()
	if err != nil {
		return nil, err
	}
	out := make([]models.Summary, 0, len(tags))
	for _, tag := range tags {
		docs, err := folio.QueryType[models.Document](s.store, tag).Execute(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Summary{Type: tag, Count: len(docs)})
	}
	return out, nil
}

// Watch streams the changes of one document.
func (s *Service) Watch(ctx context.Context, typ, id string) (*folio.Stream[folio.Change[models.Document]], error) {
	return folio.ObserveType[models.Document](ctx, s.store, typ, id)
}

// WatchAll streams the documents of typ on start and after every change.
func (s *Service) WatchAll(ctx context.Context, typ, filter, sort string) (*folio.Stream[[]models.Document], error) {
	q, err := s.Query(typ, filter, sort)
	if err != nil {
		return nil, err
	}
	return q.Observe(ctx)
}

// withID returns doc with an id, generating a UUID when it has none.
func withID(doc models.Document) models.Document {
	if doc == nil {
		doc = models.Document{}
	}
	if doc.RecordID() == "" {
		doc[models.IDField] = uuid.NewString()
	}
	return doc
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
