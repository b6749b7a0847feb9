package peerlink

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"airdrop/internal/registry"
)

// WFDDevice is one OS-enumerated Wi-Fi Direct peer: its advertised name and
// the link-local endpoint pair negotiated once a group forms.
type WFDDevice struct {
	DisplayName string
	PeerID      string
	Endpoint    string // host:port of the link-local socket
}

// WFDEnumerator abstracts the platform call that lists currently-visible
// Wi-Fi Direct devices. There is no portable, dependency-backed way to do
// this from Go across platforms; an embedding process may supply a
// platform-specific implementation through daemon.Deps. This repository
// ships none: cmd/airdropd leaves it nil, so the unavailable default
// below is used. DESIGN.md records this as a deliberate stdlib-only
// surface.
type WFDEnumerator interface {
	Enumerate(ctx context.Context) ([]WFDDevice, error)
}

// unavailableEnumerator is the default: it reports no devices and lets the
// provider's Available() return false, so Manager falls through to TCP.
type unavailableEnumerator struct{}

func (unavailableEnumerator) Enumerate(context.Context) ([]WFDDevice, error) {
	return nil, nil
}

// WifiDirectProvider locates peers by display_name/peer_id among
// OS-enumerated WFD devices and hands up the negotiated link-local socket.
type WifiDirectProvider struct {
	enumerator WFDEnumerator
	log        zerolog.Logger
	dialer     net.Dialer
}

func NewWifiDirectProvider(enumerator WFDEnumerator, log zerolog.Logger) *WifiDirectProvider {
	if enumerator == nil {
		enumerator = unavailableEnumerator{}
	}
	return &WifiDirectProvider{enumerator: enumerator, log: log.With().Str("provider", "wifidirect").Logger()}
}

func (p *WifiDirectProvider) Name() string { return "wifidirect" }

// Available reports whether any WFD device is currently visible at all;
// Connect still does its own lookup since visibility can change between
// the two calls.
func (p *WifiDirectProvider) Available() bool {
	devices, err := p.enumerator.Enumerate(context.Background())
	return err == nil && len(devices) > 0
}

func (p *WifiDirectProvider) Connect(ctx context.Context, peer registry.PeerRecord) (Link, error) {
	devices, err := p.enumerator.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("peerlink: enumerate WFD devices: %w", err)
	}

	var target *WFDDevice
	for i := range devices {
		d := devices[i]
		if d.PeerID == peer.PeerID || (d.DisplayName != "" && d.DisplayName == peer.DisplayName) {
			target = &d
			break
		}
	}
	if target == nil {
		return nil, ErrPeerNotFound
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", target.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("peerlink: dial WFD endpoint %s: %w", target.Endpoint, err)
	}
	return newNetLink(conn, p.Name()), nil
}
