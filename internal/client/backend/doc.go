// Package backend is the HTTP client for the hosted backend: GoTrue-style
// auth under /auth/v1 and PostgREST-style storage under /rest/v1.
//
// The client keeps the current session, persists it in the conf store and
// reports auth transitions to subscribers the way the backend's own SDK
// does (INITIAL_SESSION, SIGNED_IN, TOKEN_REFRESHED, SIGNED_OUT). It
// implements session.Provider.
package backend
