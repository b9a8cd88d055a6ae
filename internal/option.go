package internal

import (
	"io"

	"github.com/starford/folio/pkg/folio"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logOut io.Writer
	store  *folio.Store
}

// newApplication applies opts over an application logging to logOut.
func newApplication(logOut io.Writer, opts ...Option) *application {
	a := &application{logOut: logOut}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the structured log. nil keeps the command default.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		if w != nil {
			a.logOut = w
		}
	}
}

// WithStore serves an already opened store instead of opening
// Config.Store.Path.
func WithStore(s *folio.Store) Option {
	return func(a *application) {
		a.store = s
	}
}
