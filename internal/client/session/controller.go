package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

const (
	DefaultGracePeriod   = 400 * time.Millisecond
	DefaultFastTimeout   = 400 * time.Millisecond
	DefaultUserIDTimeout = 2 * time.Second

	// ReasonAfterLogin is the refresh reason issued when a session appears.
	ReasonAfterLogin = "boot:afterLogin"
)

// Provider is the external auth collaborator. GetSession and GetUser return
// (nil, nil) when there is no session.
type Provider interface {
	GetSession(ctx context.Context) (*models.Session, error)
	GetUser(ctx context.Context) (*models.User, error)
	RefreshSession(ctx context.Context) (*models.Session, error)
	// OnAuthStateChange registers fn for every auth event and returns a
	// function removing it.
	OnAuthStateChange(fn func(event models.AuthEvent, sess *models.Session)) (unsubscribe func())
}

// Refresher accepts UI refresh requests. The returned channel closes once a
// pass covering the request completes.
type Refresher interface {
	RequestReason(reason string) <-chan struct{}
}

// Realtime manages the data-change subscriptions bound to a session.
type Realtime interface {
	Setup(ctx context.Context) error
	Teardown(ctx context.Context) error
}

// Reloader reloads the data sets that depend on who is logged in.
type Reloader interface {
	ReloadIntake(ctx context.Context) error
	ReloadAppointments(ctx context.Context) error
}

// Controller owns the auth status of one Store.
type Controller struct {
	store    *Store
	provider Provider
	hooks    Hooks

	clock         timex.Clock
	logger        logging.Logger
	grace         time.Duration
	fastTimeout   time.Duration
	userIDTimeout time.Duration

	refresher Refresher
	realtime  Realtime
	reloader  Reloader
	postLogin func(ctx context.Context) error

	graceTimer *timex.CancellableTimer
	wg         sync.WaitGroup

	// Follow-ups run one at a time in the order their events arrived, so a
	// sign-out teardown never overtakes the setup of the login before it.
	followMu  sync.Mutex
	followQ   []followUp
	following bool

	mu        sync.Mutex
	baseCtx   context.Context
	listeners map[uint64]func(AuthStatus)
	nextID    uint64
}

type followUp struct {
	ctx  context.Context
	name string
	fn   func(ctx context.Context)
}

type Option func(*Controller)

func WithClock(c timex.Clock) Option { return func(ctl *Controller) { ctl.clock = c } }

func WithLogger(l logging.Logger) Option { return func(ctl *Controller) { ctl.logger = l } }

func WithGracePeriod(d time.Duration) Option { return func(ctl *Controller) { ctl.grace = d } }

func WithFastTimeout(d time.Duration) Option { return func(ctl *Controller) { ctl.fastTimeout = d } }

func WithUserIDTimeout(d time.Duration) Option { return func(ctl *Controller) { ctl.userIDTimeout = d } }

func WithRefresher(r Refresher) Option { return func(ctl *Controller) { ctl.refresher = r } }

func WithRealtime(r Realtime) Option { return func(ctl *Controller) { ctl.realtime = r } }

func WithReloader(r Reloader) Option { return func(ctl *Controller) { ctl.reloader = r } }

// WithPostLogin sets a hook run once, after the first session appears.
func WithPostLogin(fn func(ctx context.Context) error) Option {
	return func(ctl *Controller) { ctl.postLogin = fn }
}

// NewController returns a controller for store. A nil provider means no
// backend is configured and the user is permanently logged out.
func NewController(store *Store, provider Provider, hooks Hooks, opts ...Option) *Controller {
	if store == nil {
		store = NewStore()
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	c := &Controller{
		store:         store,
		provider:      provider,
		hooks:         hooks,
		clock:         timex.Real(),
		logger:        logging.Nop(),
		grace:         DefaultGracePeriod,
		fastTimeout:   DefaultFastTimeout,
		userIDTimeout: DefaultUserIDTimeout,
		baseCtx:       context.Background(),
		listeners:     make(map[uint64]func(AuthStatus)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("module", "session")
	c.graceTimer = timex.NewCancellableTimer(c.clock)
	return c
}

func (c *Controller) Store() *Store { return c.store }

func (c *Controller) Status() AuthStatus { return c.store.Status() }

// OnStatus registers fn for every status change, including moves into
// Unknown.
func (c *Controller) OnStatus(fn func(AuthStatus)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Wait blocks until every follow-up started by auth events has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// RequireSession asks the provider for the current session and applies the
// result to the hooks. Provider errors leave the status as it is and report
// false.
func (c *Controller) RequireSession(ctx context.Context) bool {
	if c.provider == nil {
		c.logger.Debug(ctx, "no auth client", "error", common.ErrNoClient)
		c.callHook(ctx, "user ui", func() { c.hooks.OnUserUI("") })
		c.FinalizeAuthState(false)
		return false
	}

	sess, err := c.provider.GetSession(ctx)
	if err != nil {
		c.logger.Warn(ctx, "session lookup failed", "error", err)
		return false
	}

	logged := sess != nil
	if logged {
		c.store.setIdentity(sess.User)
	} else {
		c.store.clearEmail()
	}
	email := c.store.Email()
	c.callHook(ctx, "user ui", func() { c.hooks.OnUserUI(email) })
	c.FinalizeAuthState(logged)
	return logged
}

// IsLoggedInFast races a session lookup against timeout (the fast timeout
// when zero). On timeout or error it returns the last known value.
func (c *Controller) IsLoggedInFast(ctx context.Context, timeout time.Duration) bool {
	if c.provider == nil {
		return false
	}
	if timeout <= 0 {
		timeout = c.fastTimeout
	}

	sess, err := timex.Within(ctx, c.clock, timeout, c.provider.GetSession)
	if err != nil {
		st := c.store.Status()
		c.logger.Debug(ctx, "fast session check fell back", "status", st, "error", err)
		return st.LoggedIn()
	}
	return sess != nil
}

// GetUserID resolves the current user id. When the provider fails or times
// out, the cached id is returned unless the status is Unauthenticated.
func (c *Controller) GetUserID(ctx context.Context) string {
	if c.provider == nil {
		return ""
	}

	user, err := timex.Within(ctx, c.clock, c.userIDTimeout, c.provider.GetUser)
	if err == nil {
		if user == nil || user.ID == "" {
			return ""
		}
		c.store.setUserID(user.ID)
		return user.ID
	}

	st := c.store.Status()
	if st.IsUnauthenticated() {
		c.logger.Debug(ctx, "user id lookup failed while logged out", "error", err)
		return ""
	}
	if errors.Is(err, common.ErrTimeout) {
		c.logger.Warn(ctx, "user id lookup timed out, using cached id", "status", st)
	} else {
		c.logger.Warn(ctx, "user id lookup failed, using cached id", "status", st, "error", err)
	}
	return c.store.UserID()
}

// WatchAuthState subscribes to the provider's auth stream. Follow-up work
// started by events runs under ctx.
func (c *Controller) WatchAuthState(ctx context.Context) (unsubscribe func()) {
	if c.provider == nil {
		c.logger.Warn(ctx, "auth watch skipped", "error", common.ErrNoClient)
		return func() {}
	}
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()
	return c.provider.OnAuthStateChange(c.handleAuthEvent)
}

func (c *Controller) handleAuthEvent(event models.AuthEvent, sess *models.Session) {
	ctx := c.context()
	prev := c.store.Status()
	c.logger.Info(ctx, "auth event", "event", event, "session", sess != nil, "status", prev)

	if sess != nil {
		c.store.setIdentity(sess.User)
		c.FinalizeAuthState(true)
		email := c.store.Email()
		c.callHook(ctx, "user ui", func() { c.hooks.OnUserUI(email) })

		if prev.IsAuthenticated() && event != models.EventSignedIn {
			return
		}
		c.requestRefresh(ctx, ReasonAfterLogin)
		runPostLogin := c.store.claimPostLogin()
		c.goFollowUp(ctx, "after login", func(ctx context.Context) {
			if runPostLogin && c.postLogin != nil {
				c.step(ctx, "post-login hook", c.postLogin)
			}
			if c.realtime != nil {
				c.step(ctx, "realtime setup", c.realtime.Setup)
			}
			c.reload(ctx)
		})
		return
	}

	c.store.clearEmail()
	c.callHook(ctx, "user ui", func() { c.hooks.OnUserUI("") })
	c.store.stashSignOut(c.signOutCleanup)

	if event.Immediate() {
		c.FinalizeAuthState(false)
		return
	}
	c.ScheduleAuthGrace()
}

func (c *Controller) signOutCleanup(ctx context.Context) {
	if c.realtime != nil {
		c.step(ctx, "realtime teardown", c.realtime.Teardown)
	}
	c.reload(ctx)
}

func (c *Controller) reload(ctx context.Context) {
	if c.reloader == nil {
		return
	}
	c.step(ctx, "intake reload", c.reloader.ReloadIntake)
	c.step(ctx, "appointments reload", c.reloader.ReloadAppointments)
}

// ScheduleAuthGrace moves the status to Unknown and arms the grace timer. A
// pending timer is replaced.
func (c *Controller) ScheduleAuthGrace() {
	c.store.mu.Lock()
	c.store.gen++
	gen := c.store.gen
	c.store.status = Unknown(c.store.lastLoggedIn)
	st := c.store.status
	c.store.mu.Unlock()

	ctx := c.context()
	c.logger.Info(ctx, "auth grace started", "status", st, "grace", c.grace)
	c.notify(ctx, st)
	c.graceTimer.Start(c.grace, func() { c.graceCheck(gen) })
}

func (c *Controller) graceCheck(gen uint64) {
	ctx := c.context()
	logged := c.store.LastLoggedIn()

	if c.provider == nil {
		logged = false
	} else {
		sess, err := timex.Within(ctx, c.clock, c.fastTimeout, c.provider.GetSession)
		if err != nil {
			c.logger.Warn(ctx, "grace re-check failed, keeping previous state", "logged_in", logged, "error", err)
		} else {
			logged = sess != nil
		}
	}

	if !c.finalize(logged, &gen) {
		c.logger.Debug(ctx, "stale grace re-check dropped")
	}
}

// RejectSession logs the user out after the backend kept rejecting the
// session's credentials. Unlike an ambiguous auth event there is no grace
// period: the overlay is shown and the sign-out cleanup runs at once.
func (c *Controller) RejectSession(ctx context.Context) {
	c.logger.Warn(ctx, "session rejected by backend")
	c.store.clearEmail()
	c.callHook(ctx, "user ui", func() { c.hooks.OnUserUI("") })
	c.store.stashSignOut(c.signOutCleanup)
	c.FinalizeAuthState(false)
}

// FinalizeAuthState sets the definitive status and applies its side
// effects. It cancels a pending grace timer.
func (c *Controller) FinalizeAuthState(logged bool) {
	c.finalize(logged, nil)
}

// finalize applies logged unless expect is set and no longer matches the
// store generation.
func (c *Controller) finalize(logged bool, expect *uint64) bool {
	c.store.mu.Lock()
	if expect != nil && *expect != c.store.gen {
		c.store.mu.Unlock()
		return false
	}
	c.graceTimer.Cancel()
	c.store.gen++
	prev := c.store.status
	if logged {
		c.store.status = Authenticated()
	} else {
		c.store.status = Unauthenticated()
		c.store.userID = ""
	}
	c.store.lastLoggedIn = logged
	st := c.store.status
	cleanup := c.store.pendingSignOut
	c.store.pendingSignOut = nil
	c.store.mu.Unlock()

	ctx := c.context()
	if prev != st {
		c.logger.Info(ctx, "auth status finalized", "from", prev, "to", st)
	}
	if !logged && cleanup != nil {
		c.goFollowUp(ctx, "sign-out cleanup", cleanup)
	}

	c.callHook(ctx, "capture guard", func() { c.hooks.OnCaptureGuard(!logged) })
	c.callHook(ctx, "doctor access", func() { c.hooks.OnDoctorAccess(logged) })
	c.callHook(ctx, "login overlay", func() { c.hooks.OnLoginOverlay(!logged) })
	c.notify(ctx, st)
	return true
}

func (c *Controller) notify(ctx context.Context, st AuthStatus) {
	c.callHook(ctx, "status", func() { c.hooks.OnStatus(st) })

	c.mu.Lock()
	fns := make([]func(AuthStatus), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		logging.Guard(ctx, c.logger, "status listener", func() { fn(st) })
	}
}

func (c *Controller) requestRefresh(ctx context.Context, reason string) {
	if c.refresher == nil {
		return
	}
	logging.Guard(ctx, c.logger, "refresh request", func() { c.refresher.RequestReason(reason) })
}

func (c *Controller) callHook(ctx context.Context, name string, fn func()) {
	logging.Guard(ctx, c.logger, "hook "+name, fn)
}

// goFollowUp queues fn behind the follow-ups already waiting and starts the
// worker when none is running.
func (c *Controller) goFollowUp(ctx context.Context, name string, fn func(ctx context.Context)) {
	c.wg.Add(1)
	c.followMu.Lock()
	c.followQ = append(c.followQ, followUp{ctx: ctx, name: name, fn: fn})
	if c.following {
		c.followMu.Unlock()
		return
	}
	c.following = true
	c.followMu.Unlock()
	go c.runFollowUps()
}

func (c *Controller) runFollowUps() {
	for {
		c.followMu.Lock()
		if len(c.followQ) == 0 {
			c.following = false
			c.followMu.Unlock()
			return
		}
		f := c.followQ[0]
		c.followQ = c.followQ[1:]
		c.followMu.Unlock()

		logging.Guard(f.ctx, c.logger, f.name, func() { f.fn(f.ctx) })
		c.wg.Done()
	}
}

// step runs one follow-up action; failures are logged and never stop the
// actions after it.
func (c *Controller) step(ctx context.Context, name string, fn func(ctx context.Context) error) {
	var err error
	if logging.Guard(ctx, c.logger, name, func() { err = fn(ctx) }) {
		return
	}
	if err != nil {
		c.logger.Error(ctx, "auth follow-up failed", "step", name, "error", err)
	}
}

func (c *Controller) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseCtx
}
