package peerlink

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"airdrop/internal/registry"
)

// TCPProvider opens a plain TCP connection to (peer.ip, peer.port), the
// same-subnet fallback transport.
type TCPProvider struct {
	log    zerolog.Logger
	dialer net.Dialer
}

func NewTCPProvider(log zerolog.Logger) *TCPProvider {
	return &TCPProvider{log: log.With().Str("provider", "tcp").Logger()}
}

func (p *TCPProvider) Name() string { return "tcp" }

// Available always reports true: TCP needs no local radio. A peer that
// advertised no IP/port pair is refused per call, by Connect.
func (p *TCPProvider) Available() bool { return true }

func (p *TCPProvider) Connect(ctx context.Context, peer registry.PeerRecord) (Link, error) {
	if peer.IP == nil || peer.Port == 0 {
		return nil, fmt.Errorf("peerlink: peer %s has no IP/port", peer.PeerID)
	}
	addr := net.JoinHostPort(peer.IP.String(), fmt.Sprintf("%d", peer.Port))
	conn, err := p.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("peerlink: dial %s: %w", addr, err)
	}
	return newNetLink(conn, p.Name()), nil
}

// TCPListener is the receive-path counterpart of TCPProvider. It binds
// exactly the address passed to ListenTCP and does no interface selection
// of its own; the daemon passes ":port", which listens on all interfaces.
type TCPListener struct {
	ln net.Listener
}

func ListenTCP(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("peerlink: listen %s: %w", addr, err)
	}
	return &TCPListener{ln: ln}, nil
}

func (l *TCPListener) Accept(ctx context.Context) (Link, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.ln.Accept()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		_ = l.ln.Close()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("peerlink: accept: %w", r.err)
		}
		return newNetLink(r.conn, "tcp"), nil
	}
}

func (l *TCPListener) Close() error { return l.ln.Close() }
