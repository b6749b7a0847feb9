// Package eventbus is the supplemented local control-plane surface: it
// fans the registry's peer events and the transfer table's state events
// out to any number of subscribers (an embedding process's own Go code, or
// a websocket-connected UI process) as JSON frames, and exposes a
// Prometheus /metrics endpoint alongside. Nothing in internal/discovery or
// internal/transfer depends on this package; it only ever consumes their
// already-exported event channels, so a caller embedding this module as a
// library can ignore eventbus entirely.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"airdrop/internal/errkind"
	"airdrop/internal/registry"
	"airdrop/internal/transfer"
)

// FrameKind names the wire shape of one fanned-out event, matching the
// event names here ("Events emitted").
type FrameKind string

const (
	FramePeerFound         FrameKind = "PeerFound"
	FramePeerUpdated       FrameKind = "PeerUpdated"
	FramePeerLost          FrameKind = "PeerLost"
	FrameTransferRequested FrameKind = "TransferRequested"
	FrameTransferProgress  FrameKind = "TransferProgressUpdated"
	FrameTransferComplete  FrameKind = "TransferCompleted"
	FrameTransferFailed    FrameKind = "TransferFailed"
)

// Frame is one JSON message broadcast to subscribers.
type Frame struct {
	Kind FrameKind `json:"kind"`
	Data any       `json:"data"`
}

// Bus multiplexes the registry and transfer event streams into a
// broadcast fan-out. Exactly one Bus per process; Run owns both upstream
// channels for their lifetime.
type Bus struct {
	log zerolog.Logger

	mu   sync.Mutex
	subs map[int]chan Frame
	next int

	metrics *metrics
}

func New(log zerolog.Logger) *Bus {
	return &Bus{
		log:     log.With().Str("component", "eventbus.Bus").Logger(),
		subs:    make(map[int]chan Frame),
		metrics: newMetrics(),
	}
}

// Subscribe registers a new fan-out target. The returned channel is closed
// when unsubscribe is called or when Run's context is cancelled. Frames
// are dropped (never blocked on) for a subscriber that falls behind.
func (b *Bus) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 64)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
		b.mu.Unlock()
	}
}

func (b *Bus) broadcast(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- f:
		default:
			b.log.Warn().Int("subscriber", id).Str("kind", string(f.Kind)).Msg("subscriber slow, dropping frame")
		}
	}
}

// Run consumes peerEvents and transferEvents until ctx is cancelled or
// both channels close, translating each into a Frame and a metrics update.
// It is meant to run for the lifetime of the daemon in its own goroutine.
func (b *Bus) Run(ctx context.Context, peerEvents <-chan registry.Event, transferEvents <-chan transfer.Event) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for id, ch := range b.subs {
				delete(b.subs, id)
				close(ch)
			}
			b.mu.Unlock()
			return
		case e, ok := <-peerEvents:
			if !ok {
				peerEvents = nil
				if transferEvents == nil {
					return
				}
				continue
			}
			b.handlePeerEvent(e)
		case e, ok := <-transferEvents:
			if !ok {
				transferEvents = nil
				if peerEvents == nil {
					return
				}
				continue
			}
			b.handleTransferEvent(e)
		}
	}
}

func (b *Bus) handlePeerEvent(e registry.Event) {
	switch e.Kind {
	case registry.EventAdded:
		b.metrics.peersKnown.Inc()
		b.broadcast(Frame{Kind: FramePeerFound, Data: e.Peer})
	case registry.EventUpdated:
		b.broadcast(Frame{Kind: FramePeerUpdated, Data: e.Peer})
	case registry.EventRemoved:
		b.metrics.peersKnown.Dec()
		b.broadcast(Frame{Kind: FramePeerLost, Data: e.Peer})
	}
}

func (b *Bus) handleTransferEvent(e transfer.Event) {
	var kind FrameKind
	switch e.State {
	case transfer.StateAwaitingApproval:
		kind = FrameTransferRequested
	case transfer.StateCompleted:
		kind = FrameTransferComplete
		b.metrics.transfersActive.Dec()
		b.metrics.transfersTotal.WithLabelValues("completed").Inc()
	case transfer.StateFailed, transfer.StateRejected, transfer.StateCancelled:
		kind = FrameTransferFailed
		b.metrics.transfersActive.Dec()
		b.metrics.transfersTotal.WithLabelValues(string(e.State)).Inc()
	case transfer.StateTransferring:
		b.metrics.transfersActive.Inc()
		kind = FrameTransferProgress
	default:
		kind = FrameTransferProgress
	}

	payload := map[string]any{
		"transferId": e.TransferID,
		"state":      e.State,
	}
	if e.Reason != nil {
		payload["error"] = e.Reason.Error()
		payload["errorKind"] = errkind.Of(e.Reason).String()
	}
	b.broadcast(Frame{Kind: kind, Data: payload})
}

// Progress publishes an out-of-band TransferProgressUpdated frame. The
// transfer state machine's own terminal transitions go through
// handleTransferEvent; mid-transfer byte progress has no State of its own
// so daemon.App.Send calls this directly from the AirDrop Client's
// progress callback. The receive path reports no byte progress here.
func (b *Bus) Progress(transferID string, p transfer.Progress) {
	b.broadcast(Frame{
		Kind: FrameTransferProgress,
		Data: map[string]any{
			"transferId": transferID,
			"bytesDone":  p.BytesDone,
			"bytesTotal": p.BytesTotal,
			"rateBps":    p.RateBps,
			"etaSeconds": p.ETA.Seconds(),
		},
	})
}
