package page

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollSucceedsEventually(t *testing.T) {
	calls := 0
	v, ok := Poll(context.Background(), PollOptions{Timeout: time.Second, Interval: 5 * time.Millisecond},
		func(context.Context) (int, bool) {
			calls++
			return calls, calls == 3
		})
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestPollTimeoutRunsFinalCheck(t *testing.T) {
	start := time.Now()
	calls := 0
	_, ok := Poll(context.Background(), PollOptions{Timeout: 30 * time.Millisecond, Interval: 10 * time.Millisecond},
		func(context.Context) (string, bool) {
			calls++
			return "", false
		})
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestPollFinalCheckCanSucceed(t *testing.T) {
	deadline := time.Now().Add(20 * time.Millisecond)
	_, ok := Poll(context.Background(), PollOptions{Timeout: 20 * time.Millisecond, Interval: 50 * time.Millisecond},
		func(context.Context) (bool, bool) {
			return true, time.Now().After(deadline)
		})
	assert.True(t, ok)
}

func TestPollCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	_, ok := Poll(ctx, PollOptions{Timeout: time.Second, Interval: 5 * time.Millisecond},
		func(context.Context) (int, bool) { return 0, false })
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestImmediate(t *testing.T) {
	assert.True(t, Immediate(ReasonFocus))
	assert.True(t, Immediate(ReasonNavigation))
	assert.False(t, Immediate(ReasonMutation))
	assert.False(t, Immediate(ReasonHeartbeat))
}
