package download

import (
	"sync"
)

// Inflight caps concurrent ingests at one per client address. Acquire
// reserves the address; Bind attaches the task id once known; Release
// frees it on every exit path of the ingest.
type Inflight struct {
	mutex  sync.Mutex
	byAddr map[string]string
}

func NewInflight() *Inflight {
	return &Inflight{byAddr: make(map[string]string)}
}

func (inflight *Inflight) Acquire(addr string) bool {
	inflight.mutex.Lock()
	defer inflight.mutex.Unlock()

	if _, busy := inflight.byAddr[addr]; busy {
		return false
	}
	inflight.byAddr[addr] = ""
	return true
}

func (inflight *Inflight) Bind(addr string, taskID string) {
	inflight.mutex.Lock()
	defer inflight.mutex.Unlock()

	if _, busy := inflight.byAddr[addr]; busy {
		inflight.byAddr[addr] = taskID
	}
}

func (inflight *Inflight) Release(addr string) {
	inflight.mutex.Lock()
	defer inflight.mutex.Unlock()

	delete(inflight.byAddr, addr)
}

// TaskFor returns the task id bound to addr, if any.
func (inflight *Inflight) TaskFor(addr string) (string, bool) {
	inflight.mutex.Lock()
	defer inflight.mutex.Unlock()

	taskID, busy := inflight.byAddr[addr]
	return taskID, busy
}
