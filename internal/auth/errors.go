package auth

import "errors"

var (
	// ErrTokenInvalid is returned for a token that fails signature, expiry
	// or claim validation.
	ErrTokenInvalid = errors.New("auth: invalid token")

	// ErrForbidden is returned when a level lacks a permission.
	ErrForbidden = errors.New("auth: insufficient permissions")
)
