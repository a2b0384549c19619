// Package session tracks whether the user is logged in.
//
// The Controller reconciles the provider's auth-change stream, on-demand
// session lookups and a short grace period into one AuthStatus. While a
// re-check is in flight the status is Unknown and consumers keep treating
// the user as they were last known, so a brief network hiccup never flashes
// the login overlay or locks the capture inputs.
package session
