// Package storage defines the record directory: one file per record under a
// directory named after the record's type tag.
package storage

import "time"

// Entry is one record file returned by List.
type Entry struct {
	ID      string
	Data    []byte
	ModTime time.Time
}

// Provider is the interface for record file operations.
type Provider interface {
	// Root returns the absolute store root.
	Root() string
	// Dir returns the absolute directory holding records of typeTag.
	Dir(typeTag string) (string, error)
	// EnsureDir creates the type directory, failing with
	// apperr.ErrDirectoryConflict when a non-directory occupies its path.
	EnsureDir(typeTag string) error
	// Write atomically replaces the record file for (typeTag, id).
	Write(typeTag, id string, data []byte) error
	// Create is Write for a new record; it fails with
	// apperr.ErrAlreadyExists when the record file exists.
	Create(typeTag, id string, data []byte) error
	// Read returns the record bytes or an error wrapping apperr.ErrNotFound.
	Read(typeTag, id string) ([]byte, error)
	// Delete removes the record file. A missing file is not an error.
	Delete(typeTag, id string) error
	// List returns every record file of typeTag in file-name order.
	List(typeTag string) ([]Entry, error)
	// Types returns the type tags that currently have a directory.
	Types() ([]string, error)
	// Touch advances the type directory's modification time.
	Touch(typeTag string) error
	// RemoveDir deletes the whole type directory.
	RemoveDir(typeTag string) error
	// Reset deletes and recreates the store root.
	Reset() error
}
