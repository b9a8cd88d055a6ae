package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeJSON encodes v as the response body. Encoding failures can only be
// logged: the status line is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: encode response",
			slog.Int("status", status),
			slog.String("error", err.Error()))
	}
}

// readJSON decodes a single JSON value of at most limit bytes from the request
// body into v. On failure it writes 413 or 400 and returns false.
func readJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(v)
	if err == nil && dec.Decode(new(json.RawMessage)) != io.EOF {
		err = errors.New("trailing data after JSON value")
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
		return false
	}
	writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
	return false
}
