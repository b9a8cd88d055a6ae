package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/recordservice"
	"github.com/starford/folio/internal/sse"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *recordservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *recordservice.Service) *Handler {
	return &Handler{svc: svc}
}

// param returns a path parameter, decoding escaped characters such as %2F.
func param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("record already exists"))
	case errors.Is(err, apperr.ErrInvalidQuery), errors.Is(err, apperr.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrInvalidSchema):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrDirectoryConflict):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decodeDocument(w http.ResponseWriter, r *http.Request) (models.Document, bool) {
	var doc models.Document
	if !readJSON(w, r, maxBodyBytes, &doc) {
		return nil, false
	}
	if doc == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return nil, false
	}
	return doc, true
}

// ListTypes handles GET /types.
//
//	@Summary		List record types with their counts
//	@Tags			types
//	@Produce		json
//	@Success		200	{object}	TypeListResponse
//	@Security		BearerAuth
//	@Router			/types [get]
func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.Types(r.Context())
	if err != nil {
		writeError(w, "list types", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": types})
}

// ListRecords handles GET /records/{type}.
//
//	@Summary		List records of a type with optional filter, sort and paging
//	@Tags			records
//	@Produce		json
//	@Param			type	path		string	true	"Record type"
//	@Param			filter	query		string	false	"Filter, e.g. status=open,title~*docs*"
//	@Param			sort	query		string	false	"Sort keys, e.g. -priority,title"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	RecordListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{type} [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.List(r.Context(), param(r, "type"), recordservice.ListOptions{
		Filter: q.Get("filter"),
		Sort:   q.Get("sort"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, "list records", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": items,
		"total":   total,
	})
}

// GetRecord handles GET /records/{type}/{id}.
//
//	@Summary		Get a single record
//	@Tags			records
//	@Produce		json
//	@Param			type	path		string	true	"Record type"
//	@Param			id		path		string	true	"Record id"
//	@Success		200		{object}	RecordDetail
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{type}/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	env, err := h.svc.Get(r.Context(), param(r, "type"), param(r, "id"))
	if err != nil {
		writeError(w, "get record", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(env.Checksum))
	writeJSON(w, http.StatusOK, env)
}

// CreateRecord handles POST /records/{type}.
//
//	@Summary		Create a record; a missing id is generated
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			type	path		string		true	"Record type"
//	@Param			body	body		object		true	"Record fields"
//	@Success		201		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{type} [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeDocument(w, r)
	if !ok {
		return
	}
	env, err := h.svc.Create(r.Context(), param(r, "type"), doc)
	if err != nil {
		writeError(w, "create record", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(env.Checksum))
	writeJSON(w, http.StatusCreated, env)
}

// UpdateRecord handles PUT /records/{type}/{id}.
//
//	@Summary		Replace a record with optimistic concurrency
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			type		path		string	true	"Record type"
//	@Param			id			path		string	true	"Record id"
//	@Param			If-Match	header		string	false	"Checksum of the stored bytes"
//	@Param			body		body		object	true	"Record fields"
//	@Success		200			{object}	RecordDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{type}/{id} [put]
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	doc, ok := decodeDocument(w, r)
	if !ok {
		return
	}
	ifMatch := r.Header.Get("If-Match")
	env, err := h.svc.Update(r.Context(), param(r, "type"), param(r, "id"), doc, ifMatch)
	if err != nil {
		writeError(w, "update record", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(env.Checksum))
	writeJSON(w, http.StatusOK, env)
}

// DeleteRecord handles DELETE /records/{type}/{id}.
//
//	@Summary		Delete a record
//	@Tags			records
//	@Param			type	path	string	true	"Record type"
//	@Param			id		path	string	true	"Record id"
//	@Success		204		"Record deleted"
//	@Security		BearerAuth
//	@Router			/records/{type}/{id} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), param(r, "type"), param(r, "id")); err != nil {
		writeError(w, "delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteType handles DELETE /records/{type}.
//
//	@Summary		Delete every record of a type
//	@Tags			records
//	@Param			type	path	string	true	"Record type"
//	@Success		204		"Records deleted"
//	@Security		BearerAuth
//	@Router			/records/{type} [delete]
func (h *Handler) DeleteType(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAll(r.Context(), param(r, "type")); err != nil {
		writeError(w, "delete type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordChanges handles GET /records/{type}/{id}/changes as an SSE stream of
// record.created, record.changed and record.deleted events.
//
//	@Summary		Stream the changes of one record
//	@Tags			records
//	@Produce		text/event-stream
//	@Param			type	path	string	true	"Record type"
//	@Param			id		path	string	true	"Record id"
//	@Security		BearerAuth
//	@Router			/records/{type}/{id}/changes [get]
func (h *Handler) RecordChanges(w http.ResponseWriter, r *http.Request) {
	typ, id := param(r, "type"), param(r, "id")
	stream, err := h.svc.Watch(r.Context(), typ, id)
	if err != nil {
		writeError(w, "watch record", err)
		return
	}
	defer stream.Close()

	frames := make(chan []byte)
	go func() {
		defer close(frames)
		for c := range stream.C {
			frame, err := sse.Format(sse.Event{
				Type: "record." + c.Kind.String(),
				Data: RecordChange{Type: typ, ID: id, Data: c.Value},
			})
			if err != nil {
				slog.Error("format change failed", slog.String("error", err.Error()))
				continue
			}
			select {
			case frames <- frame:
			case <-r.Context().Done():
				return
			}
		}
	}()
	sse.Stream(w, r, frames)
}
