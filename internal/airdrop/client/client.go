// Package client implements the AirDrop Client: it issues /Discover,
// /Ask, /Upload in order against a peer's AirDrop Server and streams files
// as multipart.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"

	"airdrop/internal/peerlink"
	"airdrop/internal/registry"
	"airdrop/internal/tlsguard"
)

// Config carries the client-side tunables named here.
type Config struct {
	ConnectTimeout    time.Duration
	DiscoverTimeout   time.Duration
	TransferTimeout   time.Duration
	BufferSize        int
	LocalComputerName string
	LocalModelName    string
	LocalSenderID     string
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout <= 0 {
		return 30 * time.Second
	}
	return c.ConnectTimeout
}

func (c Config) discoverTimeout() time.Duration {
	if c.DiscoverTimeout <= 0 {
		return 10 * time.Second
	}
	return c.DiscoverTimeout
}

func (c Config) transferTimeout() time.Duration {
	if c.TransferTimeout <= 0 {
		return 30 * time.Minute
	}
	return c.TransferTimeout
}

func (c Config) bufferSize() int {
	if c.BufferSize <= 0 {
		return 80 * 1024
	}
	return c.BufferSize
}

// Client drives one peer connection through the three-phase request
// sequence. A Client is single-use: it is built fresh per transfer, since
// links are not reused across transfers.
type Client struct {
	linkMgr   *peerlink.Manager
	localCert tls.Certificate
	cfg       Config
	log       zerolog.Logger

	connID peerlink.ConnectionID
	cc     *http2.ClientConn
}

func New(linkMgr *peerlink.Manager, localCert tls.Certificate, cfg Config, log zerolog.Logger) *Client {
	return &Client{
		linkMgr:   linkMgr,
		localCert: localCert,
		cfg:       cfg,
		log:       log.With().Str("component", "airdrop.Client").Logger(),
	}
}

// Dial opens a peer link via the Peer-Link Manager, wraps it in mutual
// TLS, and establishes an HTTP/2 client connection over it. The
// connection backs exactly one transfer's Discover/Ask/Upload sequence.
func (c *Client) Dial(ctx context.Context, peer registry.PeerRecord) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.connectTimeout())
	defer cancel()

	connID, link, err := c.linkMgr.Connect(ctx, peer)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	c.connID = connID

	netConn, ok := link.(net.Conn)
	if !ok {
		_ = c.linkMgr.Close(connID)
		return fmt.Errorf("client: transport %s does not expose a net.Conn", link.Transport())
	}

	serverName := peer.DisplayName
	if serverName == "" {
		serverName = peer.PeerID
	}
	tlsConn, err := tlsguard.WrapClient(netConn, c.localCert, serverName)
	if err != nil {
		_ = c.linkMgr.Close(connID)
		return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}

	t := &http2.Transport{}
	cc, err := t.NewClientConn(tlsConn)
	if err != nil {
		_ = c.linkMgr.Close(connID)
		return fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	c.cc = cc

	c.log.Info().Str("peer_id", peer.PeerID).Str("transport", link.Transport()).Msg("peer link established")
	return nil
}

// Close tears down the HTTP/2 connection and releases the pooled link.
func (c *Client) Close() error {
	if c.cc != nil {
		_ = c.cc.Close()
	}
	if c.linkMgr != nil && c.connID != "" {
		return c.linkMgr.Close(c.connID)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.cc == nil {
		return nil, ErrNotConnected
	}
	return c.cc.RoundTrip(req.WithContext(ctx))
}
