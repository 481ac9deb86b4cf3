package app

import "errors"

var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNilParameter       = errors.New("nil parameter")
	ErrInvalidLogoutToken = errors.New("invalid logout token")
)
