package unlock

import (
	"context"
	"errors"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/refresh"
)

var (
	ErrWrongPIN           = errors.New("wrong PIN")
	ErrNoPIN              = errors.New("no PIN set")
	ErrInvalidPIN         = errors.New("PIN must be 4 to 8 digits")
	ErrLocked             = errors.New("doctor view is locked")
	ErrPasskeyUnavailable = errors.New("passkey unavailable")
	ErrPasskeyCancelled   = errors.New("passkey cancelled")
)

// Intent is the navigation that triggered the gate.
type Intent string

const (
	IntentNone   Intent = ""
	IntentDoctor Intent = "doctor"
	IntentChart  Intent = "chart"
	IntentExport Intent = "export"
)

// ParseIntent maps a command word to an Intent.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentDoctor, IntentChart, IntentExport:
		return Intent(s), true
	}
	return IntentNone, false
}

// Mode selects what the lock UI offers.
type Mode string

const (
	// ModePasskey offers a passkey retry (and the PIN).
	ModePasskey Mode = "passkey"
	// ModeSetupPasskey highlights registering a passkey.
	ModeSetupPasskey Mode = "setup-passkey"
	// ModePINOnly is used when the device has no passkey support.
	ModePINOnly Mode = "pin-only"
	// ModePIN re-prompts for the PIN after a failed attempt.
	ModePIN Mode = "pin"
)

// LoginGate is the login check done before any unlock attempt.
type LoginGate interface {
	RequireSession(ctx context.Context) bool
}

// ConfStore persists the unlock credentials.
type ConfStore interface {
	GetConf(ctx context.Context, key string) ([]byte, error)
	PutConf(ctx context.Context, key string, value []byte) error
	PutConfMany(ctx context.Context, values map[string][]byte) error
	DeleteConf(ctx context.Context, key string) error
}

// Passkeys is the platform credential port.
type Passkeys interface {
	// Available reports whether the device supports platform credentials.
	Available(ctx context.Context) bool
	// Register creates a credential and returns its id.
	Register(ctx context.Context) ([]byte, error)
	// Authenticate verifies the credential with the given id. A user abort
	// returns an error matching ErrPasskeyCancelled.
	Authenticate(ctx context.Context, credentialID []byte) error
}

// LockUI renders the lock and login overlays.
type LockUI interface {
	ShowLock(mode Mode, message string)
	// HideLock hides the lock overlay and restores input focus.
	HideLock()
	ShowLogin()
}

// Navigator performs the gated navigations.
type Navigator interface {
	ShowDoctor(ctx context.Context)
	OpenChart(ctx context.Context)
	Export(ctx context.Context) error
}

type Refresher interface {
	RequestUIRefresh(req refresh.Request) <-chan struct{}
}

// NoPasskeys is a device without platform credential support.
type NoPasskeys struct{}

func (NoPasskeys) Available(context.Context) bool { return false }

func (NoPasskeys) Register(context.Context) ([]byte, error) { return nil, ErrPasskeyUnavailable }

func (NoPasskeys) Authenticate(context.Context, []byte) error { return ErrPasskeyUnavailable }
