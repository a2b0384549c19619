package unlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/refresh"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/status"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/cryptox"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

// Conf keys.
const (
	KeyPINHash     = "pin_hash"
	KeyPINSalt     = "pin_salt"
	KeyPINScheme   = "pin_scheme"
	KeyPasskeyCred = "passkey_cred_id"
)

const (
	msgPasskeyRetry = "passkey check failed, try again or use your PIN"
	msgSetupPasskey = "set up a passkey to protect the doctor view, or use your PIN"
	msgPINOnly      = "enter your PIN to open the doctor view"
	msgNoPIN        = "no PIN set yet, choose one with setpin"
	msgWrongPIN     = "wrong PIN"
)

// Guard is the doctor-view unlock state of one session.
type Guard struct {
	auth      LoginGate
	conf      ConfStore
	passkeys  Passkeys
	ui        LockUI
	nav       Navigator
	refresher Refresher
	reporter  status.Reporter
	clock     timex.Clock
	logger    logging.Logger

	mu         sync.Mutex
	unlocked   bool
	pending    Intent
	lastUnlock time.Time
}

type Option func(*Guard)

func WithClock(c timex.Clock) Option { return func(g *Guard) { g.clock = c } }

func WithLogger(l logging.Logger) Option { return func(g *Guard) { g.logger = l } }

func WithRefresher(r Refresher) Option { return func(g *Guard) { g.refresher = r } }

func WithReporter(r status.Reporter) Option { return func(g *Guard) { g.reporter = r } }

// NewGuard returns a locked guard. A nil passkeys means no platform support.
func NewGuard(auth LoginGate, conf ConfStore, passkeys Passkeys, ui LockUI, nav Navigator, opts ...Option) *Guard {
	if passkeys == nil {
		passkeys = NoPasskeys{}
	}
	g := &Guard{
		auth:     auth,
		conf:     conf,
		passkeys: passkeys,
		ui:       ui,
		nav:      nav,
		clock:    timex.Real(),
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("module", "unlock")
	return g
}

func (g *Guard) Unlocked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unlocked
}

// LastUnlock is the time of the last successful unlock, zero if none.
func (g *Guard) LastUnlock() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastUnlock
}

// Pending is the intent waiting for an unlock.
func (g *Guard) Pending() Intent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// RequireDoctorUnlock reports whether the doctor view may be shown. It
// requires login first; a logged-out user sees the login overlay, never the
// lock. Otherwise a registered passkey is tried, and failing that the lock UI
// is shown in the mode the device supports.
func (g *Guard) RequireDoctorUnlock(ctx context.Context) bool {
	if g.auth == nil || !g.auth.RequireSession(ctx) {
		g.ui.ShowLogin()
		return false
	}
	if g.Unlocked() {
		return true
	}

	cred := g.credential(ctx)
	available := g.passkeys.Available(ctx)

	switch {
	case len(cred) > 0 && available:
		if err := g.passkeys.Authenticate(ctx, cred); err != nil {
			g.logger.Info(ctx, "passkey unlock failed", "error", err)
			g.ui.ShowLock(ModePasskey, msgPasskeyRetry)
			return false
		}
		g.markUnlocked(ctx, "passkey")
		return true
	case available:
		g.ui.ShowLock(ModeSetupPasskey, msgSetupPasskey)
		return false
	default:
		g.ui.ShowLock(ModePINOnly, msgPINOnly)
		return false
	}
}

// Open is the entry point for a gated navigation. When the gate passes the
// intent runs now, otherwise it is kept until an unlock succeeds.
func (g *Guard) Open(ctx context.Context, intent Intent) bool {
	if g.RequireDoctorUnlock(ctx) {
		g.ResumeAfterUnlock(ctx, intent)
		return true
	}
	g.mu.Lock()
	g.pending = intent
	g.mu.Unlock()
	return false
}

// ResumeAfterUnlock runs override, or the pending intent when override is
// IntentNone, and clears the pending intent. It returns what was resumed.
func (g *Guard) ResumeAfterUnlock(ctx context.Context, override Intent) Intent {
	g.mu.Lock()
	intent := override
	if intent == IntentNone {
		intent = g.pending
	}
	g.pending = IntentNone
	g.mu.Unlock()

	switch intent {
	case IntentDoctor:
		g.nav.ShowDoctor(ctx)
		g.requestRefresh(refresh.Request{Reason: "unlock:doctor", Include: refresh.Doctor})
	case IntentChart:
		g.nav.OpenChart(ctx)
		g.requestRefresh(refresh.Request{Reason: "unlock:chart", Include: refresh.Chart})
	case IntentExport:
		done := g.requestRefresh(refresh.Request{Reason: "unlock:export", Include: refresh.Doctor})
		select {
		case <-done:
		case <-ctx.Done():
			return intent
		}
		if err := g.nav.Export(ctx); err != nil {
			g.logger.Error(ctx, "export after unlock failed", "error", err)
			g.report(fmt.Sprintf("export failed: %v", err), status.ToneError)
		}
	}
	return intent
}

// UnlockWithPIN verifies pin, unlocks and resumes the pending intent. A
// match against a legacy record re-hashes it with PBKDF2.
func (g *Guard) UnlockWithPIN(ctx context.Context, pin string) error {
	rec, err := g.pinRecord(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		g.ui.ShowLock(ModePINOnly, msgNoPIN)
		return ErrNoPIN
	}

	ok, rehash := cryptox.VerifyPIN([]byte(pin), *rec)
	if !ok {
		g.ui.ShowLock(ModePIN, msgWrongPIN)
		return ErrWrongPIN
	}
	if rehash {
		if err := g.storePIN(ctx, pin); err != nil {
			g.logger.Warn(ctx, "legacy PIN upgrade failed", "error", err)
		} else {
			g.logger.Info(ctx, "legacy PIN upgraded", "scheme", cryptox.SchemePBKDF2)
		}
	}

	g.markUnlocked(ctx, "pin")
	g.ResumeAfterUnlock(ctx, IntentNone)
	return nil
}

// UnlockWithPasskey authenticates the registered passkey.
func (g *Guard) UnlockWithPasskey(ctx context.Context) error {
	if !g.passkeys.Available(ctx) {
		g.ui.ShowLock(ModePINOnly, msgPINOnly)
		return ErrPasskeyUnavailable
	}
	cred := g.credential(ctx)
	if len(cred) == 0 {
		g.ui.ShowLock(ModeSetupPasskey, msgSetupPasskey)
		return ErrPasskeyUnavailable
	}
	if err := g.passkeys.Authenticate(ctx, cred); err != nil {
		g.ui.ShowLock(ModePasskey, msgPasskeyRetry)
		return fmt.Errorf("passkey authenticate: %w", err)
	}

	g.markUnlocked(ctx, "passkey")
	g.ResumeAfterUnlock(ctx, IntentNone)
	return nil
}

// RegisterPasskey creates a platform credential, stores its id and unlocks.
func (g *Guard) RegisterPasskey(ctx context.Context) error {
	if !g.passkeys.Available(ctx) {
		return ErrPasskeyUnavailable
	}
	id, err := g.passkeys.Register(ctx)
	if err != nil {
		g.ui.ShowLock(ModeSetupPasskey, msgSetupPasskey)
		return fmt.Errorf("passkey register: %w", err)
	}
	if err := g.conf.PutConf(ctx, KeyPasskeyCred, id); err != nil {
		return fmt.Errorf("failed to store passkey id: %w", err)
	}

	g.markUnlocked(ctx, "passkey-setup")
	g.ResumeAfterUnlock(ctx, IntentNone)
	return nil
}

// SetPIN stores a new PIN. Replacing an existing PIN requires the guard to
// be unlocked.
func (g *Guard) SetPIN(ctx context.Context, pin string) error {
	if !validPIN(pin) {
		return ErrInvalidPIN
	}
	rec, err := g.pinRecord(ctx)
	if err != nil {
		return err
	}
	if rec != nil && !g.Unlocked() {
		return ErrLocked
	}
	return g.storePIN(ctx, pin)
}

// Cancel drops the pending intent and hides the lock.
func (g *Guard) Cancel() {
	g.mu.Lock()
	g.pending = IntentNone
	g.mu.Unlock()
	g.ui.HideLock()
}

// Lock ends the unlocked session, e.g. on logout.
func (g *Guard) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unlocked = false
	g.pending = IntentNone
}

func (g *Guard) markUnlocked(ctx context.Context, method string) {
	g.mu.Lock()
	g.unlocked = true
	g.lastUnlock = g.clock.Now()
	g.mu.Unlock()
	g.logger.Info(ctx, "doctor view unlocked", "method", method)
	g.ui.HideLock()
}

func (g *Guard) requestRefresh(req refresh.Request) <-chan struct{} {
	if g.refresher == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return g.refresher.RequestUIRefresh(req)
}

func (g *Guard) report(message string, tone status.Tone) {
	if g.reporter != nil {
		g.reporter.Report(message, tone)
	}
}

func (g *Guard) credential(ctx context.Context) []byte {
	id, err := g.conf.GetConf(ctx, KeyPasskeyCred)
	if err != nil {
		g.logger.Warn(ctx, "passkey id lookup failed", "error", err)
		return nil
	}
	return id
}

// pinRecord loads the stored PIN, or nil when none is set.
func (g *Guard) pinRecord(ctx context.Context) (*cryptox.PINRecord, error) {
	hash, err := g.conf.GetConf(ctx, KeyPINHash)
	if err != nil {
		return nil, fmt.Errorf("failed to load PIN: %w", err)
	}
	if len(hash) == 0 {
		return nil, nil
	}
	salt, err := g.conf.GetConf(ctx, KeyPINSalt)
	if err != nil {
		return nil, fmt.Errorf("failed to load PIN salt: %w", err)
	}
	scheme, err := g.conf.GetConf(ctx, KeyPINScheme)
	if err != nil {
		return nil, fmt.Errorf("failed to load PIN scheme: %w", err)
	}
	return &cryptox.PINRecord{Scheme: string(scheme), Salt: salt, Hash: hash}, nil
}

func (g *Guard) storePIN(ctx context.Context, pin string) error {
	rec := cryptox.NewPINRecord([]byte(pin))
	err := g.conf.PutConfMany(ctx, map[string][]byte{
		KeyPINHash:   rec.Hash,
		KeyPINSalt:   rec.Salt,
		KeyPINScheme: []byte(rec.Scheme),
	})
	if err != nil {
		return fmt.Errorf("failed to store PIN: %w", err)
	}
	return nil
}

func validPIN(pin string) bool {
	if len(pin) < 4 || len(pin) > 8 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsCancelled reports whether err is a user abort of a passkey prompt.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrPasskeyCancelled)
}
