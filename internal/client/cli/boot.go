package cli

import (
	"context"
	"fmt"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/boot"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/refresh"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/session"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/status"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/surfaces"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/unlock"
)

const ReasonInitUI = "boot:initUI"

// Boot walks the boot stages. Any failure marks the sequencer failed and is
// returned; the REPL must not start after that.
func (a *App) Boot(ctx context.Context) error {
	steps := []struct {
		stage boot.Stage
		run   func(ctx context.Context) error
	}{
		{boot.StageBoot, a.bootStorage},
		{boot.StageAuthCheck, a.bootAuth},
		{boot.StageInitCore, a.bootCore},
		{boot.StageInitModules, a.bootModules},
		{boot.StageInitUI, a.bootUI},
	}
	for _, s := range steps {
		a.seq.SetStage(s.stage)
		if err := s.run(ctx); err != nil {
			a.seq.MarkFailed(fmt.Sprintf("%s failed: %v", s.stage, err))
			return fmt.Errorf("boot %s: %w", s.stage, err)
		}
	}
	a.seq.SetStage(boot.StageIdle)
	return nil
}

func (a *App) bootStorage(ctx context.Context) error {
	conf, err := a.deps.openConf(ctx, a.config.DatabasePath)
	if err != nil {
		return fmt.Errorf("open local database: %w", err)
	}
	a.conf = conf

	b, err := a.deps.newBackend(a.config, conf, a.logger, a.onAuthFailure)
	if err != nil {
		return fmt.Errorf("backend client: %w", err)
	}
	a.backend = b

	a.doctor = surfaces.NewDoctor(b, a.clock)
	a.appointments = surfaces.NewAppointments(b, a.clock)
	a.lifestyle = surfaces.NewLifestyle(b, a.clock)
	a.chart = surfaces.NewChart(b, a.clock)
	return nil
}

func (a *App) bootAuth(ctx context.Context) error {
	rt, err := a.deps.newRealtime(a.config, a.backend, a.logger, a.onTableChange)
	if err != nil {
		return fmt.Errorf("realtime: %w", err)
	}
	a.realtime = rt

	opts := []session.Option{
		session.WithClock(a.clock),
		session.WithLogger(a.logger),
		session.WithGracePeriod(a.config.AuthGracePeriod),
		session.WithFastTimeout(a.config.FastSessionTimeout),
		session.WithUserIDTimeout(a.config.UserIDTimeout),
		session.WithRefresher(a.deferred),
		session.WithReloader(a),
		session.WithPostLogin(a.recordLogin),
	}
	if rt != nil {
		opts = append(opts, session.WithRealtime(rt))
	}
	a.auth = session.NewController(session.NewStore(), a.backend, a.ui, opts...)
	a.unwatch = a.auth.WatchAuthState(ctx)

	if _, err := a.backend.Restore(ctx); err != nil {
		a.logger.Warn(ctx, "session restore failed", "error", err)
	}
	if !a.auth.RequireSession(ctx) {
		a.sink.Report("Not logged in. Type 'login' to sign in.", status.ToneInfo)
	}
	return nil
}

func (a *App) bootCore(ctx context.Context) error {
	a.refresher = refresh.NewCoordinator(a.refreshSurfaces(), a.ui,
		refresh.WithClock(a.clock),
		refresh.WithLogger(a.logger),
		refresh.WithStepTimeout(a.config.RefreshStepTimeout),
		refresh.WithContext(ctx),
	)
	a.deferred.bind(a.refresher)
	return nil
}

func (a *App) bootModules(ctx context.Context) error {
	exp, err := a.deps.newExporter(ctx, a.config)
	if err != nil {
		return fmt.Errorf("exporter: %w", err)
	}
	a.exporter = exp

	a.guard = unlock.NewGuard(a.auth, a.conf, a.deps.passkeys(a.config), a.ui, a,
		unlock.WithClock(a.clock),
		unlock.WithLogger(a.logger),
		unlock.WithRefresher(a.refresher),
		unlock.WithReporter(a.sink),
	)

	if a.config.OnlineCheckInterval > 0 {
		watchCtx, cancel := context.WithCancel(ctx)
		a.stopWatcher = cancel
		a.watcherDone = make(chan struct{})
		go func() {
			defer close(a.watcherDone)
			a.StartOnlineStatusWatcher(watchCtx, a.config.OnlineCheckInterval)
		}()
	}
	return nil
}

func (a *App) bootUI(ctx context.Context) error {
	a.sink.Attach(a.ui.report)
	select {
	case <-a.refresher.RequestReason(ReasonInitUI):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshSurfaces wraps each surface so a successful load is rendered when
// the user is looking at it.
func (a *App) refreshSurfaces() refresh.Surfaces {
	return refresh.Surfaces{
		Doctor: a.rendered(viewDoctor, a.doctor.Refresh, func() string {
			s, _ := a.doctor.View().Get()
			return s.String()
		}),
		Appointments: a.rendered(viewAppointments, a.appointments.Refresh, func() string {
			rows, _ := a.appointments.View().Get()
			return surfaces.FormatAppointments(rows)
		}),
		Lifestyle: a.rendered(viewLifestyle, a.lifestyle.Refresh, func() string {
			t, _ := a.lifestyle.View().Get()
			return surfaces.FormatIntake(t)
		}),
		Chart: a.rendered(viewChart, a.chart.Refresh, func() string {
			s, _ := a.chart.View().Get()
			return s.String()
		}),
	}
}

func (a *App) rendered(v view, load func(context.Context) error, render func() string) refresh.Surface {
	return refresh.SurfaceFunc(func(ctx context.Context) error {
		if !a.isLoggedIn() {
			return nil
		}
		if err := load(ctx); err != nil {
			return err
		}
		a.ui.renderIf(v, render)
		return nil
	})
}

// onAuthFailure runs when a storage call is still rejected after a
// credential refresh. The session is dropped so the login overlay shows and
// later checks agree with it.
func (a *App) onAuthFailure(ctx context.Context, err error) {
	a.logger.Warn(ctx, "backend rejected credentials", "error", err)
	a.sink.Report("Session expired. Please log in again.", status.ToneError)
	if a.backend != nil {
		a.backend.ForgetSession(ctx)
	}
	if a.auth != nil {
		a.auth.RejectSession(ctx)
	}
}
