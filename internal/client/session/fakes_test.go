package session

import (
	"context"
	"sync"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/models"
)

type fakeProvider struct {
	mu         sync.Mutex
	session    *models.Session
	user       *models.User
	sessionErr error
	userErr    error
	block      bool
	listeners  []func(models.AuthEvent, *models.Session)
	calls      int
}

func (p *fakeProvider) GetSession(ctx context.Context) (*models.Session, error) {
	p.mu.Lock()
	p.calls++
	block, sess, err := p.block, p.session, p.sessionErr
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return sess, err
}

func (p *fakeProvider) GetUser(ctx context.Context) (*models.User, error) {
	p.mu.Lock()
	block, user, err := p.block, p.user, p.userErr
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return user, err
}

func (p *fakeProvider) RefreshSession(ctx context.Context) (*models.Session, error) {
	return p.GetSession(ctx)
}

func (p *fakeProvider) OnAuthStateChange(fn func(models.AuthEvent, *models.Session)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
	idx := len(p.listeners) - 1
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.listeners[idx] = nil
	}
}

func (p *fakeProvider) emit(event models.AuthEvent, sess *models.Session) {
	p.mu.Lock()
	fns := append([]func(models.AuthEvent, *models.Session){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range fns {
		if fn != nil {
			fn(event, sess)
		}
	}
}

func (p *fakeProvider) set(sess *models.Session, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session, p.sessionErr = sess, err
}

type recordingHooks struct {
	mu       sync.Mutex
	overlay  []bool
	doctor   []bool
	capture  []bool
	users    []string
	statuses []AuthStatus
}

func (h *recordingHooks) OnStatus(s AuthStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, s)
}

func (h *recordingHooks) OnLoginOverlay(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.overlay = append(h.overlay, v)
}

func (h *recordingHooks) OnUserUI(email string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.users = append(h.users, email)
}

func (h *recordingHooks) OnDoctorAccess(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.doctor = append(h.doctor, v)
}

func (h *recordingHooks) OnCaptureGuard(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.capture = append(h.capture, v)
}

func (h *recordingHooks) overlays() []bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]bool(nil), h.overlay...)
}

type recordingRefresher struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordingRefresher) RequestReason(reason string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (r *recordingRefresher) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

// calls counts named follow-up actions.
type calls struct {
	mu     sync.Mutex
	counts map[string]int
	fail   map[string]error
}

func newCalls() *calls {
	return &calls{counts: map[string]int{}, fail: map[string]error{}}
}

func (c *calls) hit(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
	return c.fail[name]
}

func (c *calls) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

func (c *calls) Setup(context.Context) error              { return c.hit("setup") }
func (c *calls) Teardown(context.Context) error           { return c.hit("teardown") }
func (c *calls) ReloadIntake(context.Context) error       { return c.hit("intake") }
func (c *calls) ReloadAppointments(context.Context) error { return c.hit("appointments") }
func (c *calls) PostLogin(context.Context) error          { return c.hit("postlogin") }
