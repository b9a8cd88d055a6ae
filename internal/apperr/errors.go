// Package apperr defines the error taxonomy shared by the store and its surfaces.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidSchema     = errors.New("invalid schema")
	ErrInvalidID         = errors.New("invalid id")
	ErrDirectoryConflict = errors.New("directory conflict")
	ErrInvalidQuery      = errors.New("invalid query")
)

// SchemaError reports a payload that exists on disk but could not be decoded
// into the requested type.
type SchemaError struct {
	Path string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid schema: %s: %v", e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidSchema) match any *SchemaError.
func (e *SchemaError) Is(target error) bool { return target == ErrInvalidSchema }

// IOError is a filesystem failure during write, delete, list or touch.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
