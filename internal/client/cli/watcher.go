package cli

import (
	"context"
	"time"
)

const (
	probeTimeout = 3 * time.Second
	ReasonOnline = "online:resume"
)

// StartOnlineStatusWatcher probes the backend every interval until ctx is
// done. Coming back online requests a refresh so views catch up.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.probeOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// probeOnline runs one health check and updates Mode. It reports whether a
// catch-up refresh was requested.
func (a *App) probeOnline(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := a.backend.Health(pctx)
	cancel()

	if err != nil {
		if a.mode() != ModeOffline {
			a.logger.Warn(ctx, "backend unreachable", "error", err)
		}
		a.setMode(ModeOffline)
		return false
	}

	wasOffline := a.mode() == ModeOffline
	a.setMode(ModeOnline)
	if wasOffline && a.isLoggedIn() {
		a.deferred.RequestReason(ReasonOnline)
		return true
	}
	return false
}
