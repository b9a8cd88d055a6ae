package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := fmt.Errorf("query: %w", &SchemaError{Path: "Widget/a", Err: cause})

	assert.ErrorIs(t, err, ErrInvalidSchema)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestIOErrorUnwraps(t *testing.T) {
	err := &IOError{Op: "write", Path: "/tmp/x", Err: fs.ErrPermission}

	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Equal(t, "write /tmp/x: permission denied", err.Error())

	var ioErr *IOError
	assert.True(t, errors.As(fmt.Errorf("batch: %w", err), &ioErr))
	assert.Equal(t, "write", ioErr.Op)
}
