package folio

import (
	"log/slog"

	"github.com/starford/folio/internal/record"
	"github.com/starford/folio/internal/watch"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	serializer  record.Serializer
	source      watch.Source
	cacheSize   int
	concurrency int
	logger      *slog.Logger
	types       []string
}

// WithSerializer sets the on-disk record format. The default is JSON.
func WithSerializer(s record.Serializer) Option {
	return func(o *options) {
		o.serializer = s
	}
}

// WithSource sets the change source used by observers. The default watches
// with fsnotify.
func WithSource(src watch.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithCache enables a bounded cache of single-record reads.
func WithCache(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

// WithConcurrency bounds file operations in flight per batch.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTypes pre-creates the directories of the given type tags so that a
// conflicting file is reported by Open rather than by a later save.
func WithTypes(tags ...string) Option {
	return func(o *options) {
		o.types = append(o.types, tags...)
	}
}
