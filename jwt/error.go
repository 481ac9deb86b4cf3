package jwt

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrInvalidAudience  = errors.New("invalid audience")
)
