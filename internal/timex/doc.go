// Package timex holds the time primitives the client state machines are
// built on.
//
//   - Duration: a time.Duration that unmarshals from "400ms"-style strings or
//     integer nanoseconds in JSON config files.
//   - Clock: Now and AfterFunc behind an interface, with Real for production
//     and FakeClock for deterministic tests.
//   - CancellableTimer: a single re-armable timer handle. Start always cancels
//     the previous run first, so at most one callback is ever pending, and a
//     callback that lost a race with Cancel or Start never runs.
package timex
