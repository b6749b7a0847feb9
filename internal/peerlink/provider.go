package peerlink

import (
	"context"

	"airdrop/internal/registry"
)

// Provider is one way of reaching a peer. Manager iterates an ordered list
// of these, skipping any that report themselves unavailable.
type Provider interface {
	Name() string
	Available() bool
	Connect(ctx context.Context, peer registry.PeerRecord) (Link, error)
}

// Listener is the accept-side counterpart a provider may optionally offer
// for the receive path (WFD group-owner acceptance, TCP listener).
type Listener interface {
	// Accept blocks until a peer connects or ctx is cancelled.
	Accept(ctx context.Context) (Link, error)
	Close() error
}
