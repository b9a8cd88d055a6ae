package api

import (
	"github.com/starford/folio/internal/models"
)

// RecordDetail is the full record response type (aliased from the domain layer).
type RecordDetail = models.Envelope

// RecordListResponse wraps paginated record listings.
type RecordListResponse struct {
	Records []RecordDetail `json:"records" validate:"required"`
	Total   int            `json:"total" example:"42" validate:"required"`
}

// TypeListResponse lists the record types in the store.
type TypeListResponse struct {
	Types []models.Summary `json:"types" validate:"required"`
}

// BatchRequest is the request body for saving many records of one type.
type BatchRequest struct {
	Records []models.Document `json:"records" validate:"required"`
}

// BatchFailure describes one record that could not be saved.
type BatchFailure struct {
	ID    string `json:"id,omitempty" example:"b7f3c1d2"`
	Error string `json:"error" validate:"required"`
}

// BatchResponse reports the outcome of a batch save.
type BatchResponse struct {
	IDs    []string       `json:"ids" validate:"required"`
	Saved  int            `json:"saved" example:"10" validate:"required"`
	Failed []BatchFailure `json:"failed,omitempty"`
}

// RecordChange is the payload of a per-record change event.
type RecordChange struct {
	Type string          `json:"type" example:"Task" validate:"required"`
	ID   string          `json:"id" example:"b7f3c1d2" validate:"required"`
	Data models.Document `json:"data"`
}
