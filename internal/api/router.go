package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/recordservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *recordservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/types", h.ListTypes)

	r.Route("/records/{type}", func(r chi.Router) {
		r.Get("/", h.ListRecords)
		r.Post("/", h.CreateRecord)
		r.Delete("/", h.DeleteType)
		r.Post("/batch", h.SaveBatch)

		r.Get("/{id}", h.GetRecord)
		r.Put("/{id}", h.UpdateRecord)
		r.Delete("/{id}", h.DeleteRecord)
		r.Get("/{id}/changes", h.RecordChanges)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
