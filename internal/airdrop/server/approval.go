package server

import (
	"context"

	"airdrop/internal/airdrop/wire"
)

// Decision is the approval callback's answer to an incoming /Ask.
// SavePath, when non-empty on an approval, overrides the configured save
// directory for that transfer only. Reason, when non-empty on a
// rejection, is attached to the record's terminal state.
type Decision struct {
	Approve  bool
	SavePath string
	Reason   string
}

// Approve grants the transfer, optionally redirecting it to savePath.
func Approve(savePath string) Decision { return Decision{Approve: true, SavePath: savePath} }

// Reject declines the transfer with an optional human-readable reason.
func Reject(reason string) Decision { return Decision{Reason: reason} }

// ApprovalCallback decides whether to accept an incoming /Ask. It may
// block (e.g. waiting on a UI dialog); the server races it against the
// configured approval timeout and never calls it more than once per
// request.
type ApprovalCallback func(ctx context.Context, req wire.AskRequest) Decision

// awaitApproval runs cb in the background and returns its decision, or a
// zero Decision with timedOut=true if ctx is cancelled first. auto_accept
// bypasses cb entirely and grants immediately.
func awaitApproval(ctx context.Context, cb ApprovalCallback, req wire.AskRequest, autoAccept bool) (decision Decision, timedOut bool) {
	if autoAccept {
		return Decision{Approve: true}, false
	}
	if cb == nil {
		return Decision{}, false
	}

	result := make(chan Decision, 1)
	go func() {
		result <- cb(ctx, req)
	}()

	select {
	case decision := <-result:
		return decision, false
	case <-ctx.Done():
		return Decision{}, true
	}
}
