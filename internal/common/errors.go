package common

import "errors"

var (
	// Storage-level errors.
	ErrNotFound = errors.New("not found")

	// Provider errors. Callers match them with errors.Is.
	ErrNoClient     = errors.New("no backend client configured")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("backend unavailable")
	ErrTimeout      = errors.New("timeout")

	// Token lifecycle errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrRefreshTokenMissing = errors.New("refresh token missing")
)
