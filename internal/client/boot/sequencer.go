package boot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/client/status"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/timex"
)

const (
	DefaultWatchdogTimeout = 15 * time.Second
	maxTransitions         = 32
)

// Indicator mirrors the current stage into the presentation layer (prompt,
// busy marker). It is optional and never needed for correctness.
type Indicator interface {
	SetStage(stage Stage)
	SetBusy(busy bool)
}

// Transition records one committed stage change.
type Transition struct {
	From Stage
	To   Stage
	At   time.Time
}

type waiter struct {
	target Stage
	fn     func(Stage)
}

// Sequencer holds the current boot stage and notifies waiters and listeners.
type Sequencer struct {
	clock     timex.Clock
	logger    logging.Logger
	reporter  status.Reporter
	indicator Indicator
	timeout   time.Duration
	watchdog  *timex.CancellableTimer

	mu          sync.Mutex
	stage       Stage
	waiters     []*waiter
	listeners   map[uint64]func(prev, next Stage)
	nextID      uint64
	transitions []Transition
}

type Option func(*Sequencer)

func WithClock(c timex.Clock) Option { return func(s *Sequencer) { s.clock = c } }

func WithLogger(l logging.Logger) Option { return func(s *Sequencer) { s.logger = l } }

func WithReporter(r status.Reporter) Option { return func(s *Sequencer) { s.reporter = r } }

func WithIndicator(i Indicator) Option { return func(s *Sequencer) { s.indicator = i } }

func WithWatchdogTimeout(d time.Duration) Option { return func(s *Sequencer) { s.timeout = d } }

// WithInitialStage restores a persisted stage value; it is normalized like
// any other stage string.
func WithInitialStage(stage string) Option {
	return func(s *Sequencer) { s.stage = ParseStage(stage) }
}

// NewSequencer returns a sequencer at its initial stage (StageBoot unless
// restored) with the watchdog armed for that stage.
func NewSequencer(opts ...Option) *Sequencer {
	s := &Sequencer{
		clock:     timex.Real(),
		logger:    logging.Nop(),
		timeout:   DefaultWatchdogTimeout,
		stage:     StageBoot,
		listeners: make(map[uint64]func(prev, next Stage)),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "boot")
	s.watchdog = timex.NewCancellableTimer(s.clock)

	s.mu.Lock()
	s.armWatchdogLocked(s.stage)
	s.mu.Unlock()
	s.mirror(s.stage)
	return s
}

// Stage returns the current stage.
func (s *Sequencer) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// IsStageAtLeast compares the current stage against stage by order.
func (s *Sequencer) IsStageAtLeast(stage Stage) bool {
	return s.Stage().Order() >= ParseStage(string(stage)).Order()
}

// SetStage moves to next. Setting the current stage again is a no-op, and
// so is moving backwards or leaving StageError.
func (s *Sequencer) SetStage(next Stage) {
	s.commit(ParseStage(string(next)))
}

// MarkFailed reports message and enters StageError.
func (s *Sequencer) MarkFailed(message string) {
	s.report(message, status.ToneError)
	s.commit(StageError)
}

// WhenStage calls fn with the current stage once the sequencer has reached
// target. If that is already the case fn runs synchronously and the returned
// unsubscribe does nothing. Entering StageError releases every waiter.
func (s *Sequencer) WhenStage(target Stage, fn func(Stage)) (unsubscribe func()) {
	target = ParseStage(string(target))

	s.mu.Lock()
	if s.stage.Order() >= target.Order() {
		current := s.stage
		s.mu.Unlock()
		logging.Guard(context.Background(), s.logger, "whenStage", func() { fn(current) })
		return func() {}
	}
	w := &waiter{target: target, fn: fn}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, other := range s.waiters {
			if other == w {
				s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
				return
			}
		}
	}
}

// OnStageChange subscribes fn to every committed transition.
func (s *Sequencer) OnStageChange(fn func(prev, next Stage)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Transitions returns the most recent committed transitions, oldest first.
func (s *Sequencer) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transition(nil), s.transitions...)
}

// Waiting returns the number of queued WhenStage callbacks.
func (s *Sequencer) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

func (s *Sequencer) commit(next Stage) bool {
	ctx := context.Background()

	s.mu.Lock()
	prev := s.stage
	switch {
	case next == prev:
		s.mu.Unlock()
		return false
	case prev == StageError:
		s.mu.Unlock()
		s.logger.Warn(ctx, "stage change after boot error ignored", "to", next)
		return false
	case next != StageError && next.Order() < prev.Order():
		s.mu.Unlock()
		s.logger.Warn(ctx, "backward stage change ignored", "from", prev, "to", next)
		return false
	}

	s.stage = next
	s.transitions = append(s.transitions, Transition{From: prev, To: next, At: s.clock.Now()})
	if len(s.transitions) > maxTransitions {
		s.transitions = s.transitions[len(s.transitions)-maxTransitions:]
	}
	s.armWatchdogLocked(next)
	ready := s.takeReadyLocked(next)
	listeners := make([]func(prev, next Stage), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "boot stage", "from", prev, "to", next)
	s.mirror(next)

	for _, w := range ready {
		logging.Guard(ctx, s.logger, "whenStage", func() { w.fn(next) })
	}
	for _, fn := range listeners {
		logging.Guard(ctx, s.logger, "onStageChange", func() { fn(prev, next) })
	}
	return true
}

// takeReadyLocked removes and returns the waiters released by entering next.
func (s *Sequencer) takeReadyLocked(next Stage) []*waiter {
	if next == StageError {
		ready := s.waiters
		s.waiters = nil
		return ready
	}
	var ready, keep []*waiter
	for _, w := range s.waiters {
		if next.Order() >= w.target.Order() {
			ready = append(ready, w)
		} else {
			keep = append(keep, w)
		}
	}
	s.waiters = keep
	return ready
}

func (s *Sequencer) armWatchdogLocked(stage Stage) {
	if stage.Terminal() || s.timeout <= 0 {
		s.watchdog.Cancel()
		return
	}
	s.watchdog.Start(s.timeout, func() { s.hang(stage) })
}

func (s *Sequencer) hang(stage Stage) {
	if s.Stage() != stage {
		return
	}
	s.logger.Error(context.Background(), "boot watchdog fired", "stage", stage, "timeout", s.timeout)
	s.report(fmt.Sprintf("boot hang at %s, please reload", stage), status.ToneError)
	s.commit(StageError)
}

func (s *Sequencer) mirror(stage Stage) {
	if s.indicator == nil {
		return
	}
	logging.Guard(context.Background(), s.logger, "indicator", func() {
		s.indicator.SetStage(stage)
		s.indicator.SetBusy(!stage.Terminal())
	})
}

func (s *Sequencer) report(message string, tone status.Tone) {
	if s.reporter == nil {
		return
	}
	logging.Guard(context.Background(), s.logger, "report", func() { s.reporter.Report(message, tone) })
}
