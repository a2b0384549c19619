package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

const DefaultStepTimeout = 8 * time.Second

var errPanicked = errors.New("surface refresh panicked")

// Surface is one independently refreshable part of the UI. Refresh must be
// idempotent; a pass may call it again before an earlier, timed-out call has
// returned.
type Surface interface {
	Refresh(ctx context.Context) error
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(ctx context.Context) error

func (f SurfaceFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Surfaces holds the refreshers a pass drives. Nil entries are skipped.
type Surfaces struct {
	Doctor       Surface
	Appointments Surface
	Lifestyle    Surface
	Chart        Surface
}

func (s Surfaces) get(which Set) Surface {
	switch which {
	case Doctor:
		return s.Doctor
	case Appointments:
		return s.Appointments
	case Lifestyle:
		return s.Lifestyle
	case Chart:
		return s.Chart
	}
	return nil
}

// Stats are cumulative pass diagnostics.
type Stats struct {
	Passes     int
	Iterations int
	Runs       map[Set]int
	Timeouts   int
	Failures   int
	LastPass   string
	LastReason []string
}

// Coordinator runs at most one refresh pass at a time.
type Coordinator struct {
	surfaces    Surfaces
	ui          UIState
	clock       timex.Clock
	logger      logging.Logger
	stepTimeout time.Duration
	ctx         context.Context

	mu        sync.Mutex
	pending   pendingSet
	running   bool
	scheduled timex.Timer
	waiters   []chan struct{}
	stats     Stats
}

type Option func(*Coordinator)

func WithClock(c timex.Clock) Option { return func(co *Coordinator) { co.clock = c } }

func WithLogger(l logging.Logger) Option { return func(co *Coordinator) { co.logger = l } }

func WithStepTimeout(d time.Duration) Option { return func(co *Coordinator) { co.stepTimeout = d } }

// WithContext sets the context handed to surface refreshers.
func WithContext(ctx context.Context) Option { return func(co *Coordinator) { co.ctx = ctx } }

func NewCoordinator(surfaces Surfaces, ui UIState, opts ...Option) *Coordinator {
	if ui == nil {
		ui = StaticUI{}
	}
	c := &Coordinator{
		surfaces:    surfaces,
		ui:          ui,
		clock:       timex.Real(),
		logger:      logging.Nop(),
		stepTimeout: DefaultStepTimeout,
		ctx:         context.Background(),
		stats:       Stats{Runs: make(map[Set]int)},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("module", "refresh")
	return c
}

// RequestReason requests a refresh with default surfaces.
func (c *Coordinator) RequestReason(reason string) <-chan struct{} {
	return c.RequestUIRefresh(Request{Reason: reason})
}

// RequestUIRefresh merges req into the pending set and schedules a pass if
// none is running or scheduled. The returned channel is closed when the pass
// that covers req has drained. Do not block on it from inside a surface.
func (c *Coordinator) RequestUIRefresh(req Request) <-chan struct{} {
	set := req.Resolve(c.ui)
	done := make(chan struct{})

	c.mu.Lock()
	defer c.mu.Unlock()

	if set != 0 {
		c.pending.add(set, req.Reason)
	}
	c.waiters = append(c.waiters, done)
	if !c.running && c.scheduled == nil {
		c.scheduled = c.clock.AfterFunc(0, c.RunUIRefresh)
	}
	return done
}

// RunUIRefresh runs one pass. A call while a pass is running returns at
// once; the running pass picks up whatever is pending.
func (c *Coordinator) RunUIRefresh() {
	c.mu.Lock()
	if c.scheduled != nil {
		c.scheduled.Stop()
		c.scheduled = nil
	}
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	passID := uuid.NewString()
	c.stats.Passes++
	c.stats.LastPass = passID
	started := c.clock.Now()

	ctx := c.ctx
	var reasons []string
	iterations := 0
	for !c.pending.empty() {
		snap := c.pending.drain()
		iterations++
		c.stats.Iterations++
		reasons = append(reasons, snap.Reasons...)
		c.mu.Unlock()

		c.logger.Debug(ctx, "refresh iteration", "pass", passID, "surfaces", snap.Surfaces, "reasons", snap.Reasons)
		for _, which := range snap.Surfaces.Members() {
			c.runStep(ctx, passID, which)
		}

		c.mu.Lock()
	}
	c.running = false
	if iterations > 0 {
		c.stats.LastReason = reasons
	}
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	if iterations > 0 {
		c.logger.Info(ctx, "refresh pass done", "pass", passID, "iterations", iterations,
			"reasons", reasons, "elapsed", c.clock.Now().Sub(started))
	}
	for _, w := range waiters {
		close(w)
	}
}

// runStep refreshes one surface, waiting at most the step timeout. A timed
// out surface keeps running; its late result is only logged.
func (c *Coordinator) runStep(ctx context.Context, passID string, which Set) {
	surface := c.surfaces.get(which)
	if surface == nil {
		return
	}

	c.mu.Lock()
	c.stats.Runs[which]++
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var err error
		if logging.Guard(ctx, c.logger, "refresh "+which.String(), func() { err = surface.Refresh(ctx) }) {
			err = errPanicked
		}
		done <- err
	}()

	expired := make(chan struct{})
	t := c.clock.AfterFunc(c.stepTimeout, func() { close(expired) })
	defer t.Stop()

	select {
	case err := <-done:
		if err != nil {
			c.countFailure()
			c.logger.Error(ctx, "surface refresh failed", "pass", passID, "surface", which, "error", err)
		}
	case <-expired:
		c.mu.Lock()
		c.stats.Timeouts++
		c.mu.Unlock()
		c.logger.Warn(ctx, "surface refresh timed out", "pass", passID, "surface", which, "timeout", c.stepTimeout)
		go func() {
			if err := <-done; err != nil {
				c.logger.Warn(ctx, "late surface refresh failed", "pass", passID, "surface", which, "error", err)
			}
		}()
	}
}

func (c *Coordinator) countFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Failures++
}

// Stats returns a copy of the pass diagnostics.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.stats
	out.Runs = make(map[Set]int, len(c.stats.Runs))
	for k, v := range c.stats.Runs {
		out.Runs[k] = v
	}
	out.LastReason = append([]string(nil), c.stats.LastReason...)
	return out
}

// Busy reports whether a pass is running or scheduled.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running || c.scheduled != nil
}
