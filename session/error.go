package session

import (
	"errors"
)

var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNilParameter       = errors.New("nil parameter")
	ErrAlreadyInvalidated = errors.New("session already invalidated")
	ErrInvalidationFailed = errors.New("session invalidation failed")
	ErrClosed             = errors.New("closed")
)
