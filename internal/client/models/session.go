package models

import "time"

// AuthEvent names a transition reported by the auth provider's change stream.
type AuthEvent string

const (
	EventInitialSession   AuthEvent = "INITIAL_SESSION"
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventUserDeleted      AuthEvent = "USER_DELETED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// Immediate reports whether the event ends the session without a grace
// period.
func (e AuthEvent) Immediate() bool {
	return e == EventSignedOut || e == EventUserDeleted
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated provider session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is expired at now, with a small
// leeway so a token is refreshed before the backend starts rejecting it.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(10 * time.Second).Before(s.ExpiresAt)
}
