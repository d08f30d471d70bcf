package page

import (
	"context"
	"time"
)

// DefaultPollInterval is used when PollOptions.Interval is zero.
const DefaultPollInterval = 100 * time.Millisecond

// PollOptions bounds a Poll call.
type PollOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Poll calls check until it reports done, the timeout elapses or ctx is
// cancelled. After the deadline check runs once more as a best-effort final
// check. Returns the last value and whether check succeeded.
func Poll[T any](ctx context.Context, opts PollOptions, check func(context.Context) (T, bool)) (T, bool) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(opts.Timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		v, ok := check(ctx)
		if ok {
			return v, true
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return v, false
		case <-ticker.C:
		}
	}

	if ctx.Err() != nil {
		var zero T
		return zero, false
	}
	return check(ctx)
}
