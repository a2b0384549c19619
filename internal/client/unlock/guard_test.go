package unlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/confstore"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/refresh"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/status"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/cryptox"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

var epoch = time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)

type gate bool

func (g gate) RequireSession(context.Context) bool { return bool(g) }

type fakePasskeys struct {
	available bool
	authErr   error
	id        []byte
	auths     int
}

func (p *fakePasskeys) Available(context.Context) bool { return p.available }

func (p *fakePasskeys) Register(context.Context) ([]byte, error) {
	if p.id == nil {
		return nil, errors.New("register refused")
	}
	return p.id, nil
}

func (p *fakePasskeys) Authenticate(_ context.Context, id []byte) error {
	p.auths++
	return p.authErr
}

type lockCall struct {
	mode    Mode
	message string
}

type fakeUI struct {
	locks  []lockCall
	hides  int
	logins int
}

func (u *fakeUI) ShowLock(mode Mode, message string) {
	u.locks = append(u.locks, lockCall{mode, message})
}
func (u *fakeUI) HideLock()  { u.hides++ }
func (u *fakeUI) ShowLogin() { u.logins++ }

func (u *fakeUI) lastMode() Mode {
	if len(u.locks) == 0 {
		return ""
	}
	return u.locks[len(u.locks)-1].mode
}

type fakeNav struct {
	doctor, chart, export int
	exportErr             error
}

func (n *fakeNav) ShowDoctor(context.Context) { n.doctor++ }
func (n *fakeNav) OpenChart(context.Context)  { n.chart++ }
func (n *fakeNav) Export(context.Context) error {
	n.export++
	return n.exportErr
}

type fakeRefresher struct {
	mu   sync.Mutex
	reqs []refresh.Request
}

func (r *fakeRefresher) RequestUIRefresh(req refresh.Request) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fixture struct {
	conf      *confstore.Store
	passkeys  *fakePasskeys
	ui        *fakeUI
	nav       *fakeNav
	refresher *fakeRefresher
	clock     *timex.FakeClock
	reports   []string
	guard     *Guard
}

func newFixture(t *testing.T, loggedIn bool) *fixture {
	t.Helper()
	conf, err := confstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conf.Close() })

	f := &fixture{
		conf:      conf,
		passkeys:  &fakePasskeys{},
		ui:        &fakeUI{},
		nav:       &fakeNav{},
		refresher: &fakeRefresher{},
		clock:     timex.NewFakeClock(epoch),
	}
	reporter := status.ReporterFunc(func(message string, _ status.Tone) {
		f.reports = append(f.reports, message)
	})
	f.guard = NewGuard(gate(loggedIn), conf, f.passkeys, f.ui, f.nav,
		WithClock(f.clock), WithRefresher(f.refresher), WithReporter(reporter))
	return f
}

func (f *fixture) setPIN(t *testing.T, pin string) {
	t.Helper()
	require.NoError(t, f.guard.SetPIN(context.Background(), pin))
}

func TestRequireDoctorUnlock_LoggedOutShowsLogin(t *testing.T) {
	f := newFixture(t, false)

	assert.False(t, f.guard.RequireDoctorUnlock(context.Background()))
	assert.Equal(t, 1, f.ui.logins)
	assert.Empty(t, f.ui.locks, "no lock UI before login")
	assert.Zero(t, f.passkeys.auths)
}

func TestRequireDoctorUnlock_LoggedInStillLocked(t *testing.T) {
	f := newFixture(t, true)

	assert.False(t, f.guard.RequireDoctorUnlock(context.Background()))
	assert.Equal(t, 0, f.ui.logins, "login overlay stays hidden")
	assert.Equal(t, []lockCall{{ModePINOnly, msgPINOnly}}, f.ui.locks)
	assert.False(t, f.guard.Unlocked())
}

func TestRequireDoctorUnlock_PasskeyModes(t *testing.T) {
	tests := []struct {
		name      string
		available bool
		cred      bool
		authErr   error
		want      bool
		mode      Mode
	}{
		{"registered and verified", true, true, nil, true, ""},
		{"registered but failed", true, true, errors.New("assertion rejected"), false, ModePasskey},
		{"registered but cancelled", true, true, ErrPasskeyCancelled, false, ModePasskey},
		{"supported but not registered", true, false, nil, false, ModeSetupPasskey},
		{"registered on unsupported device", false, true, nil, false, ModePINOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			f.passkeys.available = tt.available
			f.passkeys.authErr = tt.authErr
			if tt.cred {
				require.NoError(t, f.conf.PutConf(context.Background(), KeyPasskeyCred, []byte("cred-1")))
			}

			assert.Equal(t, tt.want, f.guard.RequireDoctorUnlock(context.Background()))
			assert.Equal(t, tt.mode, f.ui.lastMode())
			assert.Equal(t, tt.want, f.guard.Unlocked())
		})
	}
}

func TestRequireDoctorUnlock_RecordsUnlock(t *testing.T) {
	f := newFixture(t, true)
	f.passkeys.available = true
	require.NoError(t, f.conf.PutConf(context.Background(), KeyPasskeyCred, []byte("cred-1")))

	require.True(t, f.guard.RequireDoctorUnlock(context.Background()))
	assert.Equal(t, epoch, f.guard.LastUnlock())
	assert.Equal(t, 1, f.ui.hides)

	f.clock.Advance(time.Minute)
	assert.True(t, f.guard.RequireDoctorUnlock(context.Background()))
	assert.Equal(t, 1, f.passkeys.auths, "unlocked for the session")
	assert.Equal(t, epoch, f.guard.LastUnlock())
}

func TestOpen_DeniedIntentResumesOnceAfterPIN(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.setPIN(t, "4711")

	assert.False(t, f.guard.Open(ctx, IntentDoctor))
	assert.Equal(t, IntentDoctor, f.guard.Pending())
	assert.Zero(t, f.nav.doctor)

	require.NoError(t, f.guard.UnlockWithPIN(ctx, "4711"))
	assert.True(t, f.guard.Unlocked())
	assert.Equal(t, IntentNone, f.guard.Pending())
	assert.Equal(t, 1, f.nav.doctor)
	require.Len(t, f.refresher.reqs, 1)
	assert.Equal(t, refresh.Doctor, f.refresher.reqs[0].Include)

	assert.Equal(t, IntentNone, f.guard.ResumeAfterUnlock(ctx, IntentNone))
	assert.Equal(t, 1, f.nav.doctor, "resume runs exactly once")
}

func TestOpen_UnlockedRunsImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.setPIN(t, "4711")
	require.NoError(t, f.guard.UnlockWithPIN(ctx, "4711"))

	assert.True(t, f.guard.Open(ctx, IntentChart))
	assert.Equal(t, 1, f.nav.chart)
	assert.Equal(t, IntentNone, f.guard.Pending())
	require.Len(t, f.refresher.reqs, 1)
	assert.Equal(t, refresh.Chart, f.refresher.reqs[0].Include)
}

func TestResumeAfterUnlock_OverrideWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.guard.Open(ctx, IntentDoctor)

	assert.Equal(t, IntentChart, f.guard.ResumeAfterUnlock(ctx, IntentChart))
	assert.Equal(t, 1, f.nav.chart)
	assert.Zero(t, f.nav.doctor)
	assert.Equal(t, IntentNone, f.guard.Pending())
}

func TestResumeAfterUnlock_Export(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.nav.exportErr = errors.New("disk full")

	assert.Equal(t, IntentExport, f.guard.ResumeAfterUnlock(ctx, IntentExport))
	assert.Equal(t, 1, f.nav.export)
	require.Len(t, f.refresher.reqs, 1)
	assert.Equal(t, refresh.Doctor, f.refresher.reqs[0].Include)
	assert.Equal(t, []string{"export failed: disk full"}, f.reports)
}

func TestUnlockWithPIN_Wrong(t *testing.T) {
	f := newFixture(t, true)
	f.setPIN(t, "4711")

	err := f.guard.UnlockWithPIN(context.Background(), "1234")
	assert.ErrorIs(t, err, ErrWrongPIN)
	assert.False(t, f.guard.Unlocked())
	assert.Equal(t, []lockCall{{ModePIN, msgWrongPIN}}, f.ui.locks)
	assert.True(t, f.guard.LastUnlock().IsZero())
}

func TestUnlockWithPIN_NoPIN(t *testing.T) {
	f := newFixture(t, true)
	assert.ErrorIs(t, f.guard.UnlockWithPIN(context.Background(), "4711"), ErrNoPIN)
	assert.Equal(t, ModePINOnly, f.ui.lastMode())
}

func TestUnlockWithPIN_UpgradesLegacyRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	require.NoError(t, f.conf.PutConf(ctx, KeyPINHash, cryptox.LegacyPINHash([]byte("1234"))))

	require.NoError(t, f.guard.UnlockWithPIN(ctx, "1234"))

	scheme, err := f.conf.GetConf(ctx, KeyPINScheme)
	require.NoError(t, err)
	assert.Equal(t, cryptox.SchemePBKDF2, string(scheme))
	salt, err := f.conf.GetConf(ctx, KeyPINSalt)
	require.NoError(t, err)
	assert.Len(t, salt, 16)

	f.guard.Lock()
	assert.ErrorIs(t, f.guard.UnlockWithPIN(ctx, "0000"), ErrWrongPIN)
	assert.NoError(t, f.guard.UnlockWithPIN(ctx, "1234"), "upgraded record still matches")
}

func TestSetPIN(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	for _, pin := range []string{"", "12", "abcd", "123456789", "12 4"} {
		assert.ErrorIs(t, f.guard.SetPIN(ctx, pin), ErrInvalidPIN, pin)
	}

	require.NoError(t, f.guard.SetPIN(ctx, "2468"), "first PIN needs no unlock")
	assert.ErrorIs(t, f.guard.SetPIN(ctx, "1357"), ErrLocked)

	require.NoError(t, f.guard.UnlockWithPIN(ctx, "2468"))
	require.NoError(t, f.guard.SetPIN(ctx, "1357"))

	f.guard.Lock()
	assert.ErrorIs(t, f.guard.UnlockWithPIN(ctx, "2468"), ErrWrongPIN)
	assert.NoError(t, f.guard.UnlockWithPIN(ctx, "1357"))
}

func TestUnlockWithPasskey(t *testing.T) {
	ctx := context.Background()

	t.Run("unavailable", func(t *testing.T) {
		f := newFixture(t, true)
		assert.ErrorIs(t, f.guard.UnlockWithPasskey(ctx), ErrPasskeyUnavailable)
	})

	t.Run("not registered", func(t *testing.T) {
		f := newFixture(t, true)
		f.passkeys.available = true
		assert.ErrorIs(t, f.guard.UnlockWithPasskey(ctx), ErrPasskeyUnavailable)
		assert.Equal(t, ModeSetupPasskey, f.ui.lastMode())
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newFixture(t, true)
		f.passkeys.available = true
		f.passkeys.authErr = ErrPasskeyCancelled
		require.NoError(t, f.conf.PutConf(ctx, KeyPasskeyCred, []byte("cred-1")))

		err := f.guard.UnlockWithPasskey(ctx)
		assert.True(t, IsCancelled(err))
		assert.Equal(t, ModePasskey, f.ui.lastMode())
		assert.False(t, f.guard.Unlocked())
	})

	t.Run("resumes pending", func(t *testing.T) {
		f := newFixture(t, true)
		f.passkeys.available = true
		require.NoError(t, f.conf.PutConf(ctx, KeyPasskeyCred, []byte("cred-1")))
		f.passkeys.authErr = errors.New("first try fails")
		require.False(t, f.guard.Open(ctx, IntentChart))

		f.passkeys.authErr = nil
		require.NoError(t, f.guard.UnlockWithPasskey(ctx))
		assert.Equal(t, 1, f.nav.chart)
	})
}

func TestRegisterPasskeyWithDeviceKey(t *testing.T) {
	ctx := context.Background()
	conf, err := confstore.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer conf.Close()

	ui := &fakeUI{}
	keys := NewDeviceKey(t.TempDir())
	g := NewGuard(gate(true), conf, keys, ui, &fakeNav{})

	assert.False(t, g.RequireDoctorUnlock(ctx))
	assert.Equal(t, ModeSetupPasskey, ui.lastMode())

	require.NoError(t, g.RegisterPasskey(ctx))
	assert.True(t, g.Unlocked())
	id, err := conf.GetConf(ctx, KeyPasskeyCred)
	require.NoError(t, err)
	assert.Len(t, id, 16)

	g.Lock()
	assert.True(t, g.RequireDoctorUnlock(ctx), "device key authenticates")
}

func TestRegisterPasskey_Unavailable(t *testing.T) {
	f := newFixture(t, true)
	assert.ErrorIs(t, f.guard.RegisterPasskey(context.Background()), ErrPasskeyUnavailable)
}

func TestCancelAndLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	f.guard.Open(ctx, IntentExport)
	f.guard.Cancel()
	assert.Equal(t, IntentNone, f.guard.Pending())
	assert.Equal(t, 1, f.ui.hides)

	f.setPIN(t, "4711")
	require.NoError(t, f.guard.UnlockWithPIN(ctx, "4711"))
	f.guard.Open(ctx, IntentDoctor)
	f.guard.Lock()
	assert.False(t, f.guard.Unlocked())
	assert.False(t, f.guard.RequireDoctorUnlock(ctx))
}

func TestParseIntent(t *testing.T) {
	for _, in := range []string{"doctor", "chart", "export"} {
		got, ok := ParseIntent(in)
		assert.True(t, ok)
		assert.Equal(t, Intent(in), got)
	}
	_, ok := ParseIntent("capture")
	assert.False(t, ok)
}
