package api

import (
	"errors"
	"net/http"

	"github.com/hashicorp/go-multierror"

	"github.com/starford/folio/internal/batch"
)

const maxBatchBytes = 50 << 20 // 50 MB

// SaveBatch handles POST /records/{type}/batch.
//
//	@Summary		Save many records of one type in a single batch
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			type	path		string				true	"Record type"
//	@Param			body	body		BatchRequest		true	"Records to save"
//	@Success		200		{object}	BatchResponse
//	@Failure		207		{object}	BatchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{type}/batch [post]
func (h *Handler) SaveBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !readJSON(w, r, maxBatchBytes, &req) {
		return
	}
	if len(req.Records) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("records are required"))
		return
	}

	ids, err := h.svc.SaveBatch(r.Context(), param(r, "type"), req.Records)
	resp := BatchResponse{IDs: ids, Saved: len(ids)}
	if err == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		writeError(w, "save batch", err)
		return
	}
	for _, e := range merr.Errors {
		item := BatchFailure{Error: e.Error()}
		var ie *batch.ItemError
		if errors.As(e, &ie) {
			item.ID = ie.Identity.ID
			item.Error = ie.Err.Error()
		}
		resp.Failed = append(resp.Failed, item)
	}
	resp.Saved = max(len(ids)-len(resp.Failed), 0)
	writeJSON(w, http.StatusMultiStatus, resp)
}
