package ble

import (
	"sync"
	"time"
)

// rangeTracker records the last time each peer id was observed, so the
// scanner can report a peer as out of range after outOfRangeTimeout
// elapses without a fresh advertisement. It is pure and lock-scoped,
// with no suspension points under its mutex.
type rangeTracker struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newRangeTracker() *rangeTracker {
	return &rangeTracker{seen: make(map[string]time.Time)}
}

// touch records peerID as seen at now.
func (r *rangeTracker) touch(peerID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[peerID] = now
}

// sweep returns every tracked peer id whose last touch is at least
// timeout old as of now, and stops tracking it so it is reported at most
// once per out-of-range transition.
func (r *rangeTracker) sweep(now time.Time, timeout time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lost []string
	for id, last := range r.seen {
		if now.Sub(last) >= timeout {
			lost = append(lost, id)
			delete(r.seen, id)
		}
	}
	return lost
}
