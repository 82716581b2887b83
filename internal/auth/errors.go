package auth

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no credentials.
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrForbidden is returned when valid credentials lack the required role.
	ErrForbidden = errors.New("auth: forbidden")
	// ErrInvalidToken is returned when a presented token fails validation.
	ErrInvalidToken = errors.New("auth: invalid token")
)
