package session

type statusKind uint8

const (
	kindUnauth statusKind = iota
	kindAuth
	kindUnknown
)

// AuthStatus is the tri-state login status. The zero value is
// Unauthenticated.
type AuthStatus struct {
	kind     statusKind
	previous bool
}

func Authenticated() AuthStatus { return AuthStatus{kind: kindAuth} }

func Unauthenticated() AuthStatus { return AuthStatus{kind: kindUnauth} }

// Unknown is the status while a session re-check is pending. previousKnown is
// the last definitive value.
func Unknown(previousKnown bool) AuthStatus {
	return AuthStatus{kind: kindUnknown, previous: previousKnown}
}

func (s AuthStatus) IsAuthenticated() bool { return s.kind == kindAuth }

func (s AuthStatus) IsUnauthenticated() bool { return s.kind == kindUnauth }

func (s AuthStatus) IsUnknown() bool { return s.kind == kindUnknown }

// LoggedIn resolves Unknown to its previous known value.
func (s AuthStatus) LoggedIn() bool {
	switch s.kind {
	case kindAuth:
		return true
	case kindUnknown:
		return s.previous
	default:
		return false
	}
}

// PreviousKnown returns the value carried by Unknown, or LoggedIn for a
// definitive status.
func (s AuthStatus) PreviousKnown() bool {
	return s.LoggedIn()
}

func (s AuthStatus) String() string {
	switch s.kind {
	case kindAuth:
		return "auth"
	case kindUnknown:
		return "unknown"
	default:
		return "unauth"
	}
}
