package holvitypes

import (
	"errors"
	"fmt"
	"testing"

	"github.com/function61/gokit/assert"
)

func TestErrno(t *testing.T) {
	assert.Assert(t, Errno(ErrNotFound) == 2)
	assert.Assert(t, Errno(ErrTombstoned) == 2)
	assert.Assert(t, Errno(ErrAlreadyExists) == 17)
	assert.Assert(t, Errno(ErrNotEmpty) == 39)
	assert.Assert(t, Errno(ErrStaleData) == 1)
	assert.Assert(t, Errno(ErrInvalidArgument) == 22)
	assert.Assert(t, Errno(ErrNotADirectory) == 20)
	assert.Assert(t, Errno(ErrIsADirectory) == 21)
	assert.Assert(t, Errno(ErrDriverFault) == 5)

	// wrapping preserves the mapping
	wrapped := fmt.Errorf("mkdir /a/b: %w", ErrAlreadyExists)
	assert.Assert(t, Errno(wrapped) == 17)
	assert.Assert(t, errors.Is(wrapped, ErrAlreadyExists))
}
