package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/export"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/refresh"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/surfaces"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/unlock"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
)

var errUsage = errors.New("usage")

// command is one REPL verb.
type command struct {
	name      string
	usage     string
	needLogin bool
	run       func(ctx context.Context, args []string) error
}

func (a *App) commands() []command {
	return []command{
		{name: "login", usage: "sign in", run: func(ctx context.Context, _ []string) error { return a.Login(ctx) }},
		{name: "logout", usage: "sign out", needLogin: true, run: func(ctx context.Context, _ []string) error { return a.Logout(ctx) }},
		{name: "status", usage: "show session, boot and refresh state", run: a.cmdStatus},
		{name: "doctor", usage: "open the doctor view (unlock required)", needLogin: true, run: a.cmdOpen(unlock.IntentDoctor)},
		{name: "chart", usage: "open the blood pressure chart (unlock required)", needLogin: true, run: a.cmdOpen(unlock.IntentChart)},
		{name: "export", usage: "export the doctor report (unlock required)", needLogin: true, run: a.cmdOpen(unlock.IntentExport)},
		{name: "lifestyle", usage: "show today's intake totals", needLogin: true, run: a.cmdView(viewLifestyle, refresh.Lifestyle)},
		{name: "appointments", usage: "show upcoming appointments", needLogin: true, run: a.cmdView(viewAppointments, refresh.Appointments)},
		{name: "capture", usage: "capture a blood pressure reading", needLogin: true, run: a.cmdCapture},
		{name: "unlock", usage: "unlock with your PIN ('unlock passkey' for the device key)", needLogin: true, run: a.cmdUnlock},
		{name: "passkey", usage: "register this device as a passkey", needLogin: true, run: a.cmdPasskey},
		{name: "setpin", usage: "set or change the unlock PIN", needLogin: true, run: a.cmdSetPIN},
		{name: "cancel", usage: "dismiss the lock screen", run: a.cmdCancel},
		{name: "refresh", usage: "refresh [doctor|appointments|lifestyle|chart|all]", needLogin: true, run: a.cmdRefresh},
	}
}

// wait blocks until a refresh pass covering done has drained.
func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) cmdOpen(intent unlock.Intent) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, _ []string) error {
		a.guard.Open(ctx, intent)
		return nil
	}
}

func (a *App) cmdView(v view, which refresh.Set) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, _ []string) error {
		a.ui.show(v)
		return wait(ctx, a.refresher.RequestUIRefresh(refresh.Request{Reason: "cmd:" + string(v), Include: which}))
	}
}

func (a *App) cmdRefresh(ctx context.Context, args []string) error {
	req := refresh.Request{Reason: "cmd:refresh"}
	if len(args) > 0 {
		set, ok := refresh.ParseSet(args[0])
		if !ok {
			return fmt.Errorf("%w: refresh [doctor|appointments|lifestyle|chart|all]", errUsage)
		}
		req.Include = set
	}
	if err := wait(ctx, a.refresher.RequestUIRefresh(req)); err != nil {
		return err
	}
	a.ui.printf("Refreshed.\n")
	return nil
}

func (a *App) cmdStatus(ctx context.Context, _ []string) error {
	s := a.ui.snapshot()
	stats := a.refresher.Stats()
	a.ui.printf("auth:      %s (user %q)\n", a.auth.Status(), a.auth.Store().Email())
	a.ui.printf("boot:      %s\n", a.seq.Stage())
	a.ui.printf("mode:      %s\n", a.mode())
	a.ui.printf("unlocked:  %t", a.guard.Unlocked())
	if !a.guard.LastUnlock().IsZero() {
		a.ui.printf(" (since %s)", a.guard.LastUnlock().Local().Format("15:04:05"))
	}
	a.ui.printf("\ncapture:   %s\n", map[bool]string{true: "locked", false: "open"}[s.captureLocked])
	a.ui.printf("refresh:   %d passes, %d timeouts, %d failures\n", stats.Passes, stats.Timeouts, stats.Failures)
	return nil
}

func (a *App) cmdCapture(ctx context.Context, _ []string) error {
	if !a.loginConfirmed(ctx) {
		a.ui.ShowLogin()
		return nil
	}
	r := models.BloodPressure{TakenAt: a.clock.Now().UTC()}

	ctxName, err := getSimpleText(a.reader, "Context (morning/evening)", a.out)
	if err != nil {
		return err
	}
	r.Context = strings.ToLower(ctxName)

	for _, f := range []struct {
		prompt   string
		dst      *int
		optional bool
	}{
		{"Systolic (mmHg)", &r.Systolic, false},
		{"Diastolic (mmHg)", &r.Diastolic, false},
		{"Pulse (bpm, empty to skip)", &r.Pulse, true},
	} {
		s, err := getSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return err
		}
		if s == "" && f.optional {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", surfaces.ErrInvalidReading, s)
		}
		*f.dst = v
	}

	note, err := getMultiline(a.reader, "Annotation", a.out)
	if err != nil {
		return err
	}
	r.Annotation = note

	if _, err := surfaces.CaptureReading(ctx, a.backend, r); err != nil {
		return err
	}
	a.ui.printf("Saved %d/%d.\n", r.Systolic, r.Diastolic)
	a.refresher.RequestUIRefresh(refresh.Request{Reason: "capture", Include: refresh.Doctor | refresh.Chart})
	return nil
}

func (a *App) cmdUnlock(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "passkey" {
		if err := a.guard.UnlockWithPasskey(ctx); err != nil {
			return err
		}
		a.ui.printf("Unlocked.\n")
		return nil
	}
	pin, err := getSecret("Enter PIN", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)
	if err := a.guard.UnlockWithPIN(ctx, string(pin)); err != nil {
		return err
	}
	a.ui.printf("Unlocked.\n")
	return nil
}

func (a *App) cmdPasskey(ctx context.Context, _ []string) error {
	if err := a.guard.RegisterPasskey(ctx); err != nil {
		return err
	}
	a.ui.printf("Passkey registered.\n")
	return nil
}

func (a *App) cmdSetPIN(ctx context.Context, _ []string) error {
	pin, err := getSecret("New PIN (4-8 digits)", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pin)
	if err := a.guard.SetPIN(ctx, string(pin)); err != nil {
		if errors.Is(err, unlock.ErrLocked) {
			a.ui.printf("Unlock first to change the PIN.\n")
		}
		return err
	}
	a.ui.printf("PIN saved.\n")
	return nil
}

func (a *App) cmdCancel(context.Context, []string) error {
	a.guard.Cancel()
	return nil
}

// unlock.Navigator

func (a *App) ShowDoctor(context.Context) { a.ui.show(viewDoctor) }

func (a *App) OpenChart(context.Context) { a.ui.show(viewChart) }

// Export writes the doctor report from the current doctor view.
func (a *App) Export(ctx context.Context) error {
	summary, ok := a.doctor.View().Get()
	if !ok {
		return fmt.Errorf("export: doctor view not loaded")
	}
	store := a.auth.Store()
	user := models.User{ID: a.auth.GetUserID(ctx), Email: store.Email()}

	loc, err := a.exporter.Export(ctx, export.NewReport(a.clock.Now(), user, summary))
	if err != nil {
		return err
	}
	a.ui.printf("Report exported to %s\n", loc)
	return nil
}
