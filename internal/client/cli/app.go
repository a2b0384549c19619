package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/backend"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/boot"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/config"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/confstore"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/export"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/realtime"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/refresh"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/session"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/status"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/surfaces"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/unlock"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Backend is what the app needs from the backend client.
type Backend interface {
	session.Provider
	surfaces.Storage
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignOut(ctx context.Context) error
	Restore(ctx context.Context) (*models.Session, error)
	ForgetSession(ctx context.Context)
	AccessToken(ctx context.Context) (string, error)
	Health(ctx context.Context) error
}

// deps builds the collaborators that touch the outside world. Tests replace
// them with in-memory versions.
type deps struct {
	openConf    func(ctx context.Context, dsn string) (*confstore.Store, error)
	newBackend  func(cfg *config.Config, conf *confstore.Store, logger logging.Logger, onAuthErr func(context.Context, error)) (Backend, error)
	newRealtime func(cfg *config.Config, b Backend, logger logging.Logger, onChange func(table string)) (session.Realtime, error)
	newExporter func(ctx context.Context, cfg *config.Config) (export.Exporter, error)
	passkeys    func(cfg *config.Config) unlock.Passkeys
}

func defaultDeps() deps {
	return deps{
		openConf: confstore.Open,
		newBackend: func(cfg *config.Config, conf *confstore.Store, logger logging.Logger, onAuthErr func(context.Context, error)) (Backend, error) {
			return backend.NewClient(cfg.BackendURL, cfg.AnonKey,
				backend.WithLogger(logger),
				backend.WithHeaderTTL(cfg.HeaderCacheTTL),
				backend.WithSessionStore(conf),
				backend.WithAuthFailureHandler(onAuthErr),
			)
		},
		newRealtime: func(cfg *config.Config, b Backend, logger logging.Logger, onChange func(string)) (session.Realtime, error) {
			if len(cfg.RealtimeTables) == 0 {
				return nil, nil
			}
			return realtime.NewSubscriber(cfg.BackendURL, cfg.AnonKey, b, cfg.RealtimeTables, onChange,
				realtime.WithLogger(logger))
		},
		newExporter: func(ctx context.Context, cfg *config.Config) (export.Exporter, error) {
			if cfg.ExportBucket == "" {
				return export.DirExporter{Dir: cfg.ExportDir}, nil
			}
			client, err := export.NewS3Client(ctx, export.S3Options{
				Region:    cfg.S3Region,
				Endpoint:  cfg.S3Endpoint,
				AccessKey: cfg.S3AccessKey,
				SecretKey: cfg.S3SecretKey,
			})
			if err != nil {
				return nil, err
			}
			return export.S3Exporter{Client: client, Bucket: cfg.ExportBucket, Prefix: "reports"}, nil
		},
		passkeys: func(cfg *config.Config) unlock.Passkeys {
			return unlock.NewDeviceKey(filepath.Join(filepath.Dir(cfg.DatabasePath), ".health-keys"))
		},
	}
}

type App struct {
	config *config.Config
	deps   deps
	logger logging.Logger
	clock  timex.Clock
	out    io.Writer
	reader *bufio.Reader

	sink *status.Sink
	seq  *boot.Sequencer
	ui   *terminalUI

	conf      *confstore.Store
	backend   Backend
	realtime  session.Realtime
	auth      *session.Controller
	refresher *refresh.Coordinator
	deferred  *deferredRefresher
	guard     *unlock.Guard
	exporter  export.Exporter

	doctor       *surfaces.Doctor
	appointments *surfaces.Appointments
	lifestyle    *surfaces.Lifestyle
	chart        *surfaces.Chart

	unwatch     func()
	stopWatcher context.CancelFunc
	watcherDone chan struct{}

	modeMu sync.Mutex
	Mode   Mode
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewTextLogger(os.Stderr, slog.LevelInfo)
	return newApp(c, defaultDeps(), logger, timex.Real(), os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, d deps, logger logging.Logger, clock timex.Clock, in io.Reader, out io.Writer) *App {
	a := &App{
		config:   c,
		deps:     d,
		logger:   logger,
		clock:    clock,
		out:      out,
		reader:   bufio.NewReader(in),
		sink:     status.NewSink(logger),
		deferred: &deferredRefresher{},
	}
	a.ui = newTerminalUI(out)
	a.seq = boot.NewSequencer(
		boot.WithClock(clock),
		boot.WithLogger(logger),
		boot.WithReporter(a.sink),
		boot.WithIndicator(a.ui),
		boot.WithWatchdogTimeout(c.BootWatchdogTimeout),
	)
	return a
}

func (a *App) setMode(mode Mode) {
	a.modeMu.Lock()
	changed := a.Mode != mode
	a.Mode = mode
	a.modeMu.Unlock()
	if changed {
		a.logger.Info(context.Background(), "connectivity changed", "mode", mode)
	}
}

func (a *App) mode() Mode {
	a.modeMu.Lock()
	defer a.modeMu.Unlock()
	return a.Mode
}

// Run boots the app, runs the REPL and shuts down.
func (a *App) Run(ctx context.Context) error {
	defer a.Close(context.Background())
	if err := a.Boot(ctx); err != nil {
		return err
	}
	a.Root(ctx)
	return nil
}

// isLoggedIn reads the definitive auth status without asking the backend.
func (a *App) isLoggedIn() bool {
	return a.auth != nil && a.auth.Status().LoggedIn()
}

// loginConfirmed asks the backend for the session within the fast timeout
// and falls back to the last known status. Commands that need a login are
// gated on it.
func (a *App) loginConfirmed(ctx context.Context) bool {
	return a.auth != nil && a.auth.IsLoggedInFast(ctx, 0)
}

// Close stops background work and closes the conf store.
func (a *App) Close(ctx context.Context) {
	if a.stopWatcher != nil {
		a.stopWatcher()
		<-a.watcherDone
	}
	if a.unwatch != nil {
		a.unwatch()
	}
	if a.auth != nil {
		a.auth.Wait()
	}
	if a.realtime != nil {
		if err := a.realtime.Teardown(ctx); err != nil {
			a.logger.Warn(ctx, "realtime teardown failed", "error", err)
		}
	}
	if a.conf != nil {
		if err := a.conf.Close(); err != nil {
			a.logger.Warn(ctx, "conf store close failed", "error", err)
		}
	}
}

// ReloadIntake and ReloadAppointments reload user-bound data after a login
// and clear it after a logout.
func (a *App) ReloadIntake(ctx context.Context) error {
	if !a.isLoggedIn() {
		a.lifestyle.View().Clear()
		return nil
	}
	return a.lifestyle.Refresh(ctx)
}

func (a *App) ReloadAppointments(ctx context.Context) error {
	if !a.isLoggedIn() {
		a.appointments.View().Clear()
		return nil
	}
	return a.appointments.Refresh(ctx)
}

// recordLogin runs once after the first login of the process.
func (a *App) recordLogin(ctx context.Context) error {
	at := a.clock.Now().UTC().Format(time.RFC3339)
	if err := a.conf.PutConf(ctx, keyLastLogin, []byte(at)); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

const keyLastLogin = "last_login_at"

// onTableChange maps a realtime change to the surfaces showing that table.
func (a *App) onTableChange(table string) {
	var include refresh.Set
	switch table {
	case "appointments":
		include = refresh.Appointments
	default:
		include = refresh.Doctor | refresh.Chart | refresh.Lifestyle
	}
	a.deferred.RequestUIRefresh(refresh.Request{Reason: "realtime:" + table, Include: include})
}

// deferredRefresher queues requests made before the coordinator exists and
// replays them once it is bound.
type deferredRefresher struct {
	mu     sync.Mutex
	target *refresh.Coordinator
	queued []queuedRequest
}

type queuedRequest struct {
	req  refresh.Request
	done chan struct{}
}

func (d *deferredRefresher) RequestReason(reason string) <-chan struct{} {
	return d.RequestUIRefresh(refresh.Request{Reason: reason})
}

func (d *deferredRefresher) RequestUIRefresh(req refresh.Request) <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.target != nil {
		return d.target.RequestUIRefresh(req)
	}
	q := queuedRequest{req: req, done: make(chan struct{})}
	d.queued = append(d.queued, q)
	return q.done
}

func (d *deferredRefresher) bind(c *refresh.Coordinator) {
	d.mu.Lock()
	d.target = c
	queued := d.queued
	d.queued = nil
	d.mu.Unlock()

	for _, q := range queued {
		inner := c.RequestUIRefresh(q.req)
		go func(done chan struct{}) {
			<-inner
			close(done)
		}(q.done)
	}
}
