package websession

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotFound         = errors.New("session not found")
	ErrClosed           = errors.New("closed")
)
