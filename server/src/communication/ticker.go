package communication

import (
	"sync"
	"time"
)

const DefaultTickInterval = time.Second

// Ticker drives track auto-advance: one goroutine sweeps every room at
// a fixed interval and lets each room decide whether its current track
// has elapsed.
type Ticker struct {
	registry *Registry
	interval time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewTicker(registry *Registry, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{registry: registry, interval: interval, stop: make(chan struct{})}
}

func (ticker *Ticker) Start() {
	go ticker.run()
}

func (ticker *Ticker) run() {
	tick := time.NewTicker(ticker.interval)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			ticker.Sweep()
		case <-ticker.stop:
			return
		}
	}
}

// Sweep runs one pass over all rooms.
func (ticker *Ticker) Sweep() {
	for _, room := range ticker.registry.Rooms() {
		room.AdvanceIfEnded()
	}
}

func (ticker *Ticker) Stop() {
	ticker.stopOnce.Do(func() {
		close(ticker.stop)
	})
}
