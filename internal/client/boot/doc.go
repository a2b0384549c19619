// Package boot sequences client initialization through ordered stages:
//
//	BOOT -> AUTH_CHECK -> INIT_CORE -> INIT_MODULES -> INIT_UI -> IDLE
//
// with BOOT_ERROR as the terminal failure state reachable from any stage.
//
// The stage only moves forward. Components gate their own initialization with
// WhenStage, observe transitions with OnStageChange, and a watchdog forces
// BOOT_ERROR when a non-terminal stage is held longer than its timeout.
// Waiter and listener panics are recovered and logged.
//
// Entering BOOT_ERROR releases all queued waiters with BOOT_ERROR as the
// argument, so a caller waiting for IDLE learns about the failure instead of
// blocking forever.
package boot
