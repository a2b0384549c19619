package logging

import "context"

// Guard runs fn and recovers a panic, logging it at Warn under name. It
// reports whether fn panicked. Listener and hook callbacks go through Guard
// so a broken callback never unwinds into the caller's state machine.
func Guard(ctx context.Context, l Logger, name string, fn func()) (panicked bool) {
	defer func() {
		if p := recover(); p != nil {
			panicked = true
			l.Warn(ctx, "callback panicked", "callback", name, "panic", p)
		}
	}()
	fn()
	return false
}
