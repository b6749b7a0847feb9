package transfer

import "sync"

// CancelToken is the cooperative cancellation handle every in-flight async
// call path within a transfer observes.
type CancelToken struct {
	mu        sync.Mutex
	done      chan struct{}
	cancelled bool
}

func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel flips the token. Safe to call more than once; only the first call
// closes the channel.
func (t *CancelToken) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	close(t.done)
}

// Done returns a channel closed once Cancel has been called, for use in
// select statements alongside socket reads and file writes.
func (t *CancelToken) Done() <-chan struct{} { return t.done }

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}
