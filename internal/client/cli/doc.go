// Package cli provides the interactive health client.
//
// It wires configuration, the local conf store, the backend client and the
// core state machines (boot sequencer, auth session controller, refresh
// coordinator, doctor unlock guard) behind a terminal REPL.
//
// Typical flow: App.Boot walks the boot stages, then App.Root reads commands
// until the user exits:
//   - login / logout
//   - doctor, chart and export (gated by the doctor unlock)
//   - lifestyle, appointments and capture
//   - unlock, passkey, setpin and cancel for the lock screen
//
// A background watcher pings the backend and requests a refresh when
// connectivity returns. See App, Boot and runREPL for details.
package cli
