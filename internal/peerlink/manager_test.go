package peerlink

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/rs/zerolog"

	"airdrop/internal/registry"
)

type fakeLink struct {
	net.Conn
	transport string
}

func (f *fakeLink) Transport() string { return f.transport }

type fakeProvider struct {
	name      string
	available bool
	err       error
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) Available() bool { return p.available }
func (p *fakeProvider) Connect(ctx context.Context, peer registry.PeerRecord) (Link, error) {
	if p.err != nil {
		return nil, p.err
	}
	a, _ := net.Pipe()
	return &fakeLink{Conn: a, transport: p.name}, nil
}

func TestManagerConnectSkipsUnavailableProviders(t *testing.T) {
	wfd := &fakeProvider{name: "wifidirect", available: false}
	tcp := &fakeProvider{name: "tcp", available: true}
	m := NewManager(zerolog.Nop(), wfd, tcp)

	id, link, err := m.Connect(context.Background(), registry.PeerRecord{PeerID: "p1"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer link.Close()

	if link.Transport() != "tcp" {
		t.Errorf("Transport = %q, want tcp (wifidirect should have been skipped)", link.Transport())
	}
	if m.Active() != 1 {
		t.Errorf("Active() = %d, want 1", m.Active())
	}
	if id == "" {
		t.Error("expected a non-empty connection id")
	}
}

func TestManagerConnectReturnsNoTransportWhenAllFail(t *testing.T) {
	wfd := &fakeProvider{name: "wifidirect", available: true, err: errors.New("boom")}
	m := NewManager(zerolog.Nop(), wfd)

	_, _, err := m.Connect(context.Background(), registry.PeerRecord{PeerID: "p1"})
	if !errors.Is(err, ErrNoTransport) {
		t.Fatalf("err = %v, want ErrNoTransport", err)
	}
}

func TestManagerCloseRemovesFromPoolAndRejectsUnknownID(t *testing.T) {
	tcp := &fakeProvider{name: "tcp", available: true}
	m := NewManager(zerolog.Nop(), tcp)

	id, _, err := m.Connect(context.Background(), registry.PeerRecord{PeerID: "p1"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Close(id); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.Active() != 0 {
		t.Errorf("Active() after Close = %d, want 0", m.Active())
	}
	if err := m.Close(id); !errors.Is(err, ErrUnknownConnection) {
		t.Errorf("second Close err = %v, want ErrUnknownConnection", err)
	}
}

var _ io.Closer = (*fakeLink)(nil)
