package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"airdrop/internal/registry"
	"airdrop/internal/transfer"
)

func TestRunFansOutPeerEvents(t *testing.T) {
	b := New(zerolog.Nop())
	frames, unsubscribe := b.Subscribe()
	defer unsubscribe()

	peerEvents := make(chan registry.Event, 1)
	transferEvents := make(chan transfer.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, peerEvents, transferEvents)

	peerEvents <- registry.Event{Kind: registry.EventAdded, Peer: &registry.PeerRecord{PeerID: "p1"}}

	select {
	case f := <-frames:
		if f.Kind != FramePeerFound {
			t.Fatalf("kind = %v, want PeerFound", f.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestRunTranslatesTerminalTransferStates(t *testing.T) {
	b := New(zerolog.Nop())
	frames, unsubscribe := b.Subscribe()
	defer unsubscribe()

	peerEvents := make(chan registry.Event, 1)
	transferEvents := make(chan transfer.Event, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, peerEvents, transferEvents)

	transferEvents <- transfer.Event{TransferID: "t1", State: transfer.StateFailed}

	select {
	case f := <-frames:
		if f.Kind != FrameTransferFailed {
			t.Fatalf("kind = %v, want TransferFailed", f.Kind)
		}
		payload, ok := f.Data.(map[string]any)
		if !ok {
			t.Fatalf("data = %T, want map[string]any", f.Data)
		}
		if payload["transferId"] != "t1" {
			t.Errorf("transferId = %v, want t1", payload["transferId"])
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestSubscribeDropsFramesForSlowSubscriber(t *testing.T) {
	b := New(zerolog.Nop())
	_, unsubscribe := b.Subscribe() // never drained
	defer unsubscribe()

	for i := 0; i < 128; i++ {
		b.broadcast(Frame{Kind: FramePeerFound})
	}
	// No assertion beyond "this does not deadlock or block": broadcast
	// must never wait on a stalled subscriber.
}
