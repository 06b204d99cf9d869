package limiter

import (
	"sync"
	"time"

	"github.com/bgocumlu/juke/server/src/clock"
)

const (
	DefaultMaxRequests = 5
	DefaultWindow      = 60 * time.Second
)

// SlidingWindow admits up to max requests per identity within a rolling
// window. Entries older than the window are dropped on every check. The
// limiter is not fair across identities and does not coordinate with
// the download worker cap.
type SlidingWindow struct {
	mutex  sync.Mutex
	clock  clock.Clock
	max    int
	window time.Duration
	hits   map[string][]time.Time
}

func NewSlidingWindow(clk clock.Clock, max int, window time.Duration) *SlidingWindow {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}

	return &SlidingWindow{
		clock:  clk,
		max:    max,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records an admission for identity and reports whether it was
// within the limit. A denied call records nothing.
func (limiter *SlidingWindow) Allow(identity string) bool {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	now := limiter.clock.Now()
	remaining := limiter.prune(identity, now)
	if len(remaining) >= limiter.max {
		return false
	}

	limiter.hits[identity] = append(remaining, now)
	return true
}

// RetryAfter returns how long identity has to wait until the oldest
// remaining admission leaves the window. Zero if no entries remain.
func (limiter *SlidingWindow) RetryAfter(identity string) time.Duration {
	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	now := limiter.clock.Now()
	remaining := limiter.prune(identity, now)
	if len(remaining) == 0 {
		return 0
	}

	wait := limiter.window - now.Sub(remaining[0])
	if wait < 0 {
		wait = 0
	}
	return wait
}

func (limiter *SlidingWindow) prune(identity string, now time.Time) []time.Time {
	hits := limiter.hits[identity]
	kept := hits[:0]
	for _, hit := range hits {
		if now.Sub(hit) < limiter.window {
			kept = append(kept, hit)
		}
	}

	if len(kept) == 0 {
		delete(limiter.hits, identity)
		return nil
	}

	limiter.hits[identity] = kept
	return kept
}
