package holvitypes

import (
	"errors"
)

var (
	ErrNotFound        = errors.New("no such file or directory")
	ErrAlreadyExists   = errors.New("file exists")
	ErrNotEmpty        = errors.New("directory not empty")
	ErrStaleData       = errors.New("stale data: newer version known elsewhere")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotADirectory   = errors.New("not a directory")
	ErrIsADirectory    = errors.New("is a directory")
	ErrBadSignature    = errors.New("bad signature")
	ErrBadFormat       = errors.New("malformed envelope")
	ErrDriverFault     = errors.New("storage driver fault")
	ErrTombstoned      = errors.New("data is tombstoned")
	ErrInvalidKey      = errors.New("invalid key material")
)

// POSIX-style errnos surfaced to CLI/RPC layers
const (
	EPERM     = 1
	ENOENT    = 2
	EIO       = 5
	EINVAL    = 22
	EEXIST    = 17
	ENOTDIR   = 20
	EISDIR    = 21
	ENOTEMPTY = 39
)

// Errno maps core errors to their POSIX-style code. Unrecognized errors
// (includes driver faults) map to EIO.
func Errno(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTombstoned):
		return ENOENT
	case errors.Is(err, ErrAlreadyExists):
		return EEXIST
	case errors.Is(err, ErrNotEmpty):
		return ENOTEMPTY
	case errors.Is(err, ErrStaleData), errors.Is(err, ErrBadSignature):
		return EPERM
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrBadFormat), errors.Is(err, ErrInvalidKey):
		return EINVAL
	case errors.Is(err, ErrNotADirectory):
		return ENOTDIR
	case errors.Is(err, ErrIsADirectory):
		return EISDIR
	default:
		return EIO
	}
}
