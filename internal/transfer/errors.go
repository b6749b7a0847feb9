package transfer

import "errors"

// ErrInvalidTransition is returned when a caller requests a state change
// the machine here does not permit from the current state.
var ErrInvalidTransition = errors.New("transfer: invalid state transition")

// ErrAlreadyTerminal is returned by CancelTransfer when the record already settled
// on a terminal state; this is defined as a no-op, not a
// failure, but callers that want to distinguish it can check with errors.Is.
var ErrAlreadyTerminal = errors.New("transfer: already in a terminal state")

// ErrTooManyTransfers is returned by Table.TryAcquire when
// max_concurrent_transfers active transfers already hold a slot.
var ErrTooManyTransfers = errors.New("transfer: max_concurrent_transfers reached")
