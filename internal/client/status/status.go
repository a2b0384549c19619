// Package status carries human-readable status lines (boot progress, hang
// reports, lock messages) from the core to whatever renders them.
//
// Reports emitted before a renderer is attached are buffered and flushed in
// order on Attach, so the boot sequencer can report from its first stage.
package status

import (
	"context"
	"sync"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/logging"
)

type Tone string

const (
	ToneInfo  Tone = "info"
	ToneError Tone = "error"
)

// maxBuffered bounds the pre-attach buffer; the oldest lines are dropped.
const maxBuffered = 64

// Reporter is the single status entry point used by the core.
type Reporter interface {
	Report(message string, tone Tone)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(message string, tone Tone)

func (f ReporterFunc) Report(message string, tone Tone) { f(message, tone) }

type entry struct {
	message string
	tone    Tone
}

// Sink buffers reports until a renderer is attached.
type Sink struct {
	logger logging.Logger

	mu     sync.Mutex
	render func(message string, tone Tone)
	buf    []entry
}

func NewSink(logger logging.Logger) *Sink {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Sink{logger: logger.With("module", "status")}
}

// Report forwards to the renderer or buffers. The renderer must not call
// Report itself.
func (s *Sink) Report(message string, tone Tone) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.render == nil {
		if len(s.buf) == maxBuffered {
			s.buf = s.buf[1:]
		}
		s.buf = append(s.buf, entry{message: message, tone: tone})
		return
	}
	s.deliver(message, tone)
}

// Attach installs the renderer and flushes buffered reports in order.
func (s *Sink) Attach(render func(message string, tone Tone)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.render = render
	for _, e := range s.buf {
		s.deliver(e.message, e.tone)
	}
	s.buf = nil
}

// Buffered returns the number of reports waiting for a renderer.
func (s *Sink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

func (s *Sink) deliver(message string, tone Tone) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Warn(context.Background(), "status renderer panicked", "panic", p)
		}
	}()
	if s.render != nil {
		s.render(message, tone)
	}
}
