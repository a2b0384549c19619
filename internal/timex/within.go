package timex

import (
	"context"
	"time"

	"github.com/stephanschabuss97-design/Gesundheits-berwachung-sub000/internal/common"
)

// Within runs fn and waits at most d, measured on clock. On timeout it
// returns common.ErrTimeout and cancels the context passed to fn; fn keeps
// running until it notices. A cancelled ctx returns ctx.Err().
func Within[T any](ctx context.Context, clock Clock, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{v: v, err: err}
	}()

	expired := make(chan struct{})
	t := clock.AfterFunc(d, func() { close(expired) })
	defer t.Stop()

	var zero T
	select {
	case r := <-done:
		return r.v, r.err
	case <-expired:
		return zero, common.ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
