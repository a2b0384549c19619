// Package common contains shared constants and sentinel errors used across
// the client components.
package common

// Header names sent to the backend on every storage and auth call.
const (
	APIKeyHeaderName        = "apikey"
	AuthorizationHeaderName = "Authorization"
)
