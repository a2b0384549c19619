package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/boot"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/session"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/status"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/unlock"
)

// view is the surface the user is currently looking at.
type view string

const (
	viewNone         view = ""
	viewDoctor       view = "doctor"
	viewChart        view = "chart"
	viewLifestyle    view = "lifestyle"
	viewAppointments view = "appointments"
)

// terminalUI renders core callbacks as lines on out. It implements
// session.Hooks, unlock.LockUI, refresh.UIState and boot.Indicator.
type terminalUI struct {
	out io.Writer

	mu            sync.Mutex
	view          view
	email         string
	status        session.AuthStatus
	stage         boot.Stage
	busy          bool
	loginOverlay  bool
	doctorAccess  bool
	captureLocked bool
	lockMode      unlock.Mode
	locked        bool
}

func newTerminalUI(out io.Writer) *terminalUI {
	return &terminalUI{out: out, stage: boot.StageBoot, status: session.Unknown(false), captureLocked: true}
}

func (u *terminalUI) printf(format string, args ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, format, args...)
}

func (u *terminalUI) report(message string, tone status.Tone) {
	if tone == status.ToneError {
		u.printf("! %s\n", message)
		return
	}
	u.printf("%s\n", message)
}

// boot.Indicator

func (u *terminalUI) SetStage(stage boot.Stage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.stage = stage
}

func (u *terminalUI) SetBusy(busy bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.busy = busy
}

// session.Hooks

func (u *terminalUI) OnStatus(s session.AuthStatus) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = s
}

func (u *terminalUI) OnLoginOverlay(visible bool) {
	u.mu.Lock()
	changed := u.loginOverlay != visible
	u.loginOverlay = visible
	u.mu.Unlock()
	if changed && visible {
		u.printf("Signed out. Type 'login' to sign in.\n")
	}
}

func (u *terminalUI) OnUserUI(email string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.email = email
}

func (u *terminalUI) OnDoctorAccess(enabled bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.doctorAccess = enabled
}

func (u *terminalUI) OnCaptureGuard(locked bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.captureLocked = locked
}

// unlock.LockUI

var lockHints = map[unlock.Mode]string{
	unlock.ModePasskey:      "Type 'unlock passkey' to retry or 'unlock' to use your PIN.",
	unlock.ModeSetupPasskey: "Type 'passkey' to register this device or 'unlock' to use your PIN.",
	unlock.ModePINOnly:      "Type 'unlock' to enter your PIN ('setpin' if you have none).",
	unlock.ModePIN:          "Type 'unlock' to try again or 'cancel'.",
}

func (u *terminalUI) ShowLock(mode unlock.Mode, message string) {
	u.mu.Lock()
	u.locked = true
	u.lockMode = mode
	u.mu.Unlock()
	u.printf("[locked] %s\n  %s\n", message, lockHints[mode])
}

func (u *terminalUI) HideLock() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.locked = false
}

func (u *terminalUI) ShowLogin() {
	u.printf("Please log in first (type 'login').\n")
}

// refresh.UIState

func (u *terminalUI) ChartOpen() bool       { return u.current() == viewChart }
func (u *terminalUI) LifestyleActive() bool { return u.current() == viewLifestyle }

func (u *terminalUI) current() view {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.view
}

func (u *terminalUI) show(v view) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.view = v
}

// renderIf prints render() when v is the current view.
func (u *terminalUI) renderIf(v view, render func() string) {
	if u.current() != v {
		return
	}
	u.printf("%s", render())
}

type uiSnapshot struct {
	email         string
	status        session.AuthStatus
	stage         boot.Stage
	busy          bool
	doctorAccess  bool
	captureLocked bool
	locked        bool
	view          view
}

func (u *terminalUI) snapshot() uiSnapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return uiSnapshot{
		email: u.email, status: u.status, stage: u.stage, busy: u.busy,
		doctorAccess: u.doctorAccess, captureLocked: u.captureLocked,
		locked: u.locked, view: u.view,
	}
}
