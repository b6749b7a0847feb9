package transfer

import (
	"sync"
	"time"
)

const askUploadCorrelationWindow = 5 * time.Minute

// defaultMaxConcurrentTransfers matches config.Default's
// max_concurrent_transfers when a caller passes <= 0.
const defaultMaxConcurrentTransfers = 3

// approval records that a peer (identified by TLS certificate thumbprint)
// had an /Ask approved at a point in time, to drive the /Ask↔/Upload
// correlation rule below. Every live approval entry holds exactly one of
// the max_concurrent_transfers slots; reapLocked returns it when the
// correlation window lapses without a matching /Upload.
type approval struct {
	transferID string
	at         time.Time
}

// Table is the process-wide transfer map plus the short-lived approval
// ledger the server consults before accepting an /Upload. It also holds
// the max_concurrent_transfers slot semaphore shared by the send and
// receive paths, since both draw from the same cap.
type Table struct {
	mu        sync.Mutex
	records   map[string]*Record
	approvals map[string]approval // keyed by peer certificate thumbprint

	slots chan struct{}
}

// NewTable creates a Table whose TryAcquire enforces maxConcurrent
// simultaneous active transfers. maxConcurrent <= 0 falls back to the
// documented default of 3.
func NewTable(maxConcurrent int) *Table {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentTransfers
	}
	return &Table{
		records:   make(map[string]*Record),
		approvals: make(map[string]approval),
		slots:     make(chan struct{}, maxConcurrent),
	}
}

// reapLocked drops every approval entry whose correlation window has
// lapsed without a matching /Upload, returning the slot each one held
// and dropping its abandoned record (left in Approved; the state machine
// has no edge out of Approved short of a first byte or a cancel, and
// nobody holds the pointer once /Ask has responded). Must be called with
// t.mu held; runs opportunistically from TryAcquire and MarkApproved, so
// an abandoned /Ask cannot keep a new transfer from a slot past its window.
func (t *Table) reapLocked(now time.Time) {
	for thumbprint, a := range t.approvals {
		if now.Sub(a.at) <= askUploadCorrelationWindow {
			continue
		}
		delete(t.approvals, thumbprint)
		delete(t.records, a.transferID)
		t.releaseLocked()
	}
}

func (t *Table) releaseLocked() {
	select {
	case <-t.slots:
	default:
	}
}

// TryAcquire reserves one of the max_concurrent_transfers slots, returning
// false if the cap is already reached. Callers that successfully acquire
// must call Release exactly once, when the transfer reaches a terminal
// state or is abandoned before completing; slots held by an approved /Ask
// whose /Upload never arrives are reclaimed here once the correlation
// window lapses.
func (t *Table) TryAcquire() bool {
	t.mu.Lock()
	t.reapLocked(time.Now())
	t.mu.Unlock()

	select {
	case t.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot reserved by a prior successful TryAcquire.
func (t *Table) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked()
}

// Put registers a record for lookup by id.
func (t *Table) Put(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[r.ID] = r
}

// Get returns the record for id, if present.
func (t *Table) Get(id string) (*Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	return r, ok
}

// Remove drops a record from the table (callers keep their own reference
// if they still need final state after this).
func (t *Table) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, id)
}

// MarkApproved records that thumbprint's /Ask was approved just now,
// opening a 5-minute window for a matching /Upload. The caller's
// TryAcquire slot transfers to the approval entry; it is returned either
// by ConsumeApproval's caller or by the reaper, whichever runs first. A
// live entry already held for thumbprint is replaced: its slot is returned
// and its record dropped.
func (t *Table) MarkApproved(thumbprint, transferID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reapLocked(time.Now())
	if prev, ok := t.approvals[thumbprint]; ok {
		delete(t.records, prev.transferID)
		t.releaseLocked()
	}
	t.approvals[thumbprint] = approval{transferID: transferID, at: time.Now()}
}

// ConsumeApproval reports whether thumbprint has a live approval within
// the correlation window, returning the associated transfer id and
// deleting the entry so a second /Upload against the same /Ask is
// rejected as unordered. An entry found expired releases its slot here,
// exactly as the reaper would have.
func (t *Table) ConsumeApproval(thumbprint string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.approvals[thumbprint]
	if !ok {
		return "", false
	}
	delete(t.approvals, thumbprint)
	if time.Since(a.at) > askUploadCorrelationWindow {
		delete(t.records, a.transferID)
		t.releaseLocked()
		return "", false
	}
	return a.transferID, true
}
