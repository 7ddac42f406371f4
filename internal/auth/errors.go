package auth

import "errors"

// Request-level outcomes. Their messages double as the response bodies
// written by Middleware.
var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
)

// Token failures reported by ParseJWT and IssueJWT.
var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrEmptyToken   = errors.New("auth: empty token")
	ErrEmptySecret  = errors.New("auth: empty secret")
	ErrInvalidRole  = errors.New("auth: invalid role")
	ErrTokenExpired = errors.New("auth: token expired")
)
