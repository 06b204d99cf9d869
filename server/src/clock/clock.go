package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by every time-sensitive component.
// Production code uses SystemClock; tests use a SteppableClock.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func NewSystemClock() SystemClock {
	return SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// SteppableClock is a manually advanced clock for tests.
type SteppableClock struct {
	mutex   sync.Mutex
	current time.Time
}

func NewSteppableClock(start time.Time) *SteppableClock {
	return &SteppableClock{current: start}
}

func (clock *SteppableClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	return clock.current
}

func (clock *SteppableClock) Advance(delta time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	clock.current = clock.current.Add(delta)
}

func (clock *SteppableClock) Set(instant time.Time) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	clock.current = instant
}

// Seconds returns t as seconds since the Unix epoch, the unit used on
// the wire.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
