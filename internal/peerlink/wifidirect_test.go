package peerlink

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/rs/zerolog"

	"airdrop/internal/registry"
)

type fakeEnumerator struct {
	devices []WFDDevice
	err     error
}

func (f *fakeEnumerator) Enumerate(context.Context) ([]WFDDevice, error) {
	return f.devices, f.err
}

func TestWifiDirectProviderAvailableReflectsEnumerator(t *testing.T) {
	p := NewWifiDirectProvider(&fakeEnumerator{}, zerolog.Nop())
	if p.Available() {
		t.Error("Available() should be false with no devices")
	}

	p = NewWifiDirectProvider(&fakeEnumerator{devices: []WFDDevice{{PeerID: "x"}}}, zerolog.Nop())
	if !p.Available() {
		t.Error("Available() should be true with devices present")
	}
}

func TestWifiDirectProviderConnectMatchesByPeerIDOrDisplayName(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			defer c.Close()
		}
	}()

	enum := &fakeEnumerator{devices: []WFDDevice{
		{PeerID: "other", DisplayName: "Not Me", Endpoint: "unused:1"},
		{PeerID: "p1", DisplayName: "Target", Endpoint: ln.Addr().String()},
	}}
	p := NewWifiDirectProvider(enum, zerolog.Nop())

	link, err := p.Connect(context.Background(), registry.PeerRecord{PeerID: "p1"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer link.Close()
	if link.Transport() != "wifidirect" {
		t.Errorf("Transport() = %q", link.Transport())
	}
}

func TestWifiDirectProviderConnectFailsWhenNoMatch(t *testing.T) {
	enum := &fakeEnumerator{devices: []WFDDevice{{PeerID: "other"}}}
	p := NewWifiDirectProvider(enum, zerolog.Nop())

	_, err := p.Connect(context.Background(), registry.PeerRecord{PeerID: "p1"})
	if !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("err = %v, want ErrPeerNotFound", err)
	}
}
