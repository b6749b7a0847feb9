package transfer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// allowedTransitions enumerates the edges of the transfer state machine.
// Cancel is handled separately since it is legal from any non-terminal
// state.
var allowedTransitions = map[State][]State{
	StatePending:          {StateConnecting, StateAwaitingApproval},
	StateAwaitingApproval: {StateApproved, StateRejected, StateFailed},
	StateApproved:         {StateTransferring},
	StateConnecting:       {StateTransferring, StateFailed},
	StateTransferring:     {StateCompleted, StateFailed},
}

// Record is one per-transfer state machine instance: one mutex per record,
// so no two transfers ever contend on the same lock.
type Record struct {
	ID        string
	Direction Direction
	PeerID    string
	Files     []FileDescriptor
	Cancel    *CancelToken

	// SaveDir, when non-empty on a receive-side record, overrides the
	// configured save directory for this transfer. Set by the approval
	// decision before the record reaches Approved, never mutated after.
	SaveDir string

	mu          sync.Mutex
	state       State
	failReason  error
	emitted     map[State]bool
	events      chan<- Event
	createdAt   time.Time
}

// Event reports a single state transition, emitted at most once per
// terminal state.
type Event struct {
	TransferID string
	State      State
	Reason     error
}

// NewRecord creates a Pending record. events may be nil when the caller
// does not need a transition feed (e.g. unit tests).
func NewRecord(direction Direction, peerID string, files []FileDescriptor, events chan<- Event) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Direction: direction,
		PeerID:    peerID,
		Files:     files,
		Cancel:    NewCancelToken(),
		state:     StatePending,
		emitted:   make(map[State]bool),
		events:    events,
		createdAt: time.Now(),
	}
}

// State returns the current state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// FailReason returns the error classified against a Failed record, if any.
func (r *Record) FailReason() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failReason
}

// Transition moves the record to next. reason is attached when next is
// Failed or Rejected; it is otherwise ignored.
func (r *Record) Transition(next State, reason error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(next, reason)
}

func (r *Record) transitionLocked(next State, reason error) error {
	if r.state.Terminal() {
		return fmt.Errorf("%w: record %s already %s", ErrInvalidTransition, r.ID, r.state)
	}
	allowed := allowedTransitions[r.state]
	ok := false
	for _, s := range allowed {
		if s == next {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.state, next)
	}

	r.state = next
	if next == StateFailed || next == StateRejected {
		r.failReason = reason
	}
	r.emitLocked()
	return nil
}

// CancelTransfer transitions the record to Cancelled from any non-terminal
// state. A no-op on an already-terminal record.
func (r *Record) CancelTransfer() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return ErrAlreadyTerminal
	}
	r.Cancel.Cancel()
	r.state = StateCancelled
	r.emitLocked()
	return nil
}

func (r *Record) emitLocked() {
	if r.emitted[r.state] {
		return
	}
	r.emitted[r.state] = true
	if r.events == nil {
		return
	}
	select {
	case r.events <- Event{TransferID: r.ID, State: r.state, Reason: r.failReason}:
	default:
	}
}
