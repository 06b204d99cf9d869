package limiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bgocumlu/juke/server/src/clock"
)

const identity string = "203.0.113.7"

func TestAllowWithinLimit(t *testing.T) {
	clk := clock.NewSteppableClock(time.Unix(1000, 0))
	limiter := NewSlidingWindow(clk, 3, time.Minute)

	for i := 0; i < 3; i++ {
		require.True(t, limiter.Allow(identity))
	}
	require.False(t, limiter.Allow(identity))
}

func TestWindowExpiry(t *testing.T) {
	clk := clock.NewSteppableClock(time.Unix(1000, 0))
	limiter := NewSlidingWindow(clk, 2, time.Minute)

	require.True(t, limiter.Allow(identity))
	require.True(t, limiter.Allow(identity))
	require.False(t, limiter.Allow(identity))

	clk.Advance(61 * time.Second)
	require.True(t, limiter.Allow(identity))
}

func TestIdentitiesAreIndependent(t *testing.T) {
	clk := clock.NewSteppableClock(time.Unix(1000, 0))
	limiter := NewSlidingWindow(clk, 1, time.Minute)

	require.True(t, limiter.Allow("a"))
	require.False(t, limiter.Allow("a"))
	require.True(t, limiter.Allow("b"))
}

func TestRetryAfter(t *testing.T) {
	clk := clock.NewSteppableClock(time.Unix(1000, 0))
	limiter := NewSlidingWindow(clk, 1, time.Minute)

	require.Equal(t, time.Duration(0), limiter.RetryAfter(identity))

	require.True(t, limiter.Allow(identity))
	require.Equal(t, time.Minute, limiter.RetryAfter(identity))

	clk.Advance(40 * time.Second)
	require.Equal(t, 20*time.Second, limiter.RetryAfter(identity))

	clk.Advance(20 * time.Second)
	require.Equal(t, time.Duration(0), limiter.RetryAfter(identity))
}

func TestDeniedCallRecordsNothing(t *testing.T) {
	clk := clock.NewSteppableClock(time.Unix(1000, 0))
	limiter := NewSlidingWindow(clk, 1, time.Minute)

	require.True(t, limiter.Allow(identity))
	clk.Advance(30 * time.Second)
	require.False(t, limiter.Allow(identity))
	clk.Advance(31 * time.Second)

	// Only the admitted entry counts against the window.
	require.True(t, limiter.Allow(identity))
}

func TestDefaults(t *testing.T) {
	clk := clock.NewSteppableClock(time.Unix(1000, 0))
	limiter := NewSlidingWindow(clk, 0, 0)
	require.Equal(t, DefaultMaxRequests, limiter.max)
	require.Equal(t, DefaultWindow, limiter.window)
}
