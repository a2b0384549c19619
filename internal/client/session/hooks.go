package session

// Hooks receives the presentation side effects of auth transitions. Every
// call is made outside the controller's locks and is panic isolated.
type Hooks interface {
	OnStatus(status AuthStatus)
	// OnLoginOverlay is only called with a definitive status, never during
	// the grace window.
	OnLoginOverlay(visible bool)
	OnUserUI(email string)
	OnDoctorAccess(enabled bool)
	// OnCaptureGuard dims (locks) the capture inputs.
	OnCaptureGuard(locked bool)
}

// NopHooks implements Hooks with no-ops. Embed it to override a subset.
type NopHooks struct{}

func (NopHooks) OnStatus(AuthStatus) {}
func (NopHooks) OnLoginOverlay(bool) {}
func (NopHooks) OnUserUI(string)     {}
func (NopHooks) OnDoctorAccess(bool) {}
func (NopHooks) OnCaptureGuard(bool) {}
