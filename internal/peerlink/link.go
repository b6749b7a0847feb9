// Package peerlink implements the Peer-Link Manager: transport selection
// (Wi-Fi Direct primary, same-subnet TCP fallback) and the resulting
// connection pool.
package peerlink

import (
	"io"
	"net"
)

// Link is a bidirectional byte stream to a connected peer, tagged with the
// transport that produced it.
type Link interface {
	io.ReadWriteCloser
	Transport() string
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// netLink adapts a net.Conn into a Link.
type netLink struct {
	net.Conn
	transport string
}

func (l *netLink) Transport() string { return l.transport }

func newNetLink(conn net.Conn, transport string) Link {
	return &netLink{Conn: conn, transport: transport}
}
