// Package unlock gates the doctor view behind a local credential.
//
// The gate is separate from login: a logged-in user still has to unlock
// once per session with a passkey or a PIN. A navigation that hits the gate
// is remembered and resumed exactly once after the unlock succeeds.
package unlock
