// Package daemon wires the core's components into one running process:
// identity/certificate lifecycle, discovery, peer links, the AirDrop
// server and client, the transfer table, and the eventbus surface. It is
// the concrete shape of the "embedding process" this package assumes exists
// around the protocol engine; cmd/airdropd is a thin cobra shell over it.
package daemon

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"

	"airdrop/internal/airdrop/client"
	"airdrop/internal/airdrop/server"
	"airdrop/internal/config"
	"airdrop/internal/discovery"
	"airdrop/internal/eventbus"
	"airdrop/internal/identity"
	"airdrop/internal/peerlink"
	"airdrop/internal/registry"
	"airdrop/internal/tlsguard"
	"airdrop/internal/transfer"
)

// App is the fully wired daemon. All fields are populated by New; Start
// brings the discovery and listen planes up, Stop tears them down in
// reverse order.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	cert     *identity.Certificate
	identity *identity.LocalIdentity
	certMgr  *identity.CertManager

	Registry    *registry.Registry
	Coordinator *discovery.Coordinator
	LinkMgr     *peerlink.Manager
	Table       *transfer.Table
	Bus         *eventbus.Bus

	approval server.ApprovalCallback

	transferEvents chan transfer.Event

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	listener peerlink.Listener
}

// Deps are the external collaborators this package scopes out of the core:
// the approval callback and, optionally, a Wi-Fi Direct device enumerator.
// A nil ApprovalCallback combined with AutoAccept=false means every /Ask
// is rejected at once (403), which is a safe (if useless) default.
type Deps struct {
	Approval   server.ApprovalCallback
	WFDDevices peerlink.WFDEnumerator
}

// New constructs an App from cfg, loading or creating the local identity
// and certificate. Identity/certificate failures are fatal
// (StoreUnavailable, CryptoError) and are returned unwrapped for the
// caller to treat as startup failures.
func New(cfg *config.Config, deps Deps, log zerolog.Logger) (*App, error) {
	store, err := identity.OpenSqliteStore(cfg.IdentityDBPath)
	if err != nil {
		return nil, err
	}

	li, err := identity.LoadLocalIdentity(cfg.IdentityPlistPath)
	if err != nil {
		return nil, err
	}
	if li == nil {
		hostname, _ := os.Hostname()
		displayName := cfg.DisplayName
		if displayName == "" {
			displayName = hostname
		}
		li = &identity.LocalIdentity{
			DeviceID:      uuid.New(),
			DisplayName:   displayName,
			Visibility:    identity.Visibility(cfg.Visibility),
			SaveDirectory: cfg.SaveDirectory,
			Email:         cfg.Email,
			Phone:         identity.NormalizePhone(cfg.Phone, "US"),
		}
		li.IdentityHash = identity.ComputeIdentityHash(li.Email, li.Phone)
		if err := identity.SaveLocalIdentity(cfg.IdentityPlistPath, li); err != nil {
			return nil, err
		}
	}

	machine, _ := os.Hostname()
	certMgr := identity.NewCertManager(store, machine, cfg.CertValidityDays, cfg.CertRenewalThresholdDays, log)
	cert, err := certMgr.GetOrCreateCertificate()
	if err != nil {
		return nil, err
	}

	reg := registry.New(cfg.PeerExpiration(), log)

	providers := []peerlink.Provider{
		peerlink.NewWifiDirectProvider(deps.WFDDevices, log),
		peerlink.NewTCPProvider(log),
	}
	linkMgr := peerlink.NewManager(log, providers...)

	transferEvents := make(chan transfer.Event, 256)
	table := transfer.NewTable(cfg.MaxConcurrentTransfers)
	bus := eventbus.New(log)

	coordIdentity := discovery.Identity{
		DisplayName:  li.DisplayName,
		DeviceType:   "Windows-PC",
		IdentityHash: li.IdentityHash,
		Transports:   []string{"wifidirect", "wifi"},
		Capabilities: []string{"send", "receive"},
		Version:      "1.0",
	}
	coordinator := discovery.New(cfg, coordIdentity, reg, log)

	return &App{
		cfg:            cfg,
		log:            log.With().Str("component", "daemon.App").Logger(),
		cert:           cert,
		identity:       li,
		certMgr:        certMgr,
		Registry:       reg,
		Coordinator:    coordinator,
		LinkMgr:        linkMgr,
		Table:          table,
		Bus:            bus,
		approval:       deps.Approval,
		transferEvents: transferEvents,
	}, nil
}

// Start brings up discovery, the eventbus fan-out, and the AirDrop server
// listener. It returns once every component has started; components run
// in background goroutines tied to an internal context torn down by Stop.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.Coordinator.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("daemon: start discovery: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.Bus.Run(runCtx, a.Registry.Events(), a.transferEvents)
	}()

	addr := fmt.Sprintf(":%d", a.cfg.Port)
	ln, err := peerlink.ListenTCP(addr)
	if err != nil {
		cancel()
		return fmt.Errorf("daemon: listen %s: %w", addr, err)
	}
	a.listener = ln

	srvCfg := server.Config{
		SaveDir:            a.saveDir(),
		AutoAccept:         a.cfg.AutoAccept,
		ApprovalTimeout:    a.cfg.ApprovalTimeout(),
		BufferSize:         a.cfg.BufferSizeBytes,
		PreserveTimestamps: a.cfg.PreserveTimestamps,
		LocalComputerName:  a.identity.DisplayName,
		LocalModelName:     "Windows-PC",
	}
	srv := server.New(srvCfg, a.Table, a.approval, a.transferEvents, a.log)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.acceptLoop(runCtx, ln, srv)
	}()

	a.running = true
	a.log.Info().Uint16("port", a.cfg.Port).Msg("airdrop daemon started")
	return nil
}

// acceptLoop runs the receive-side listen plane: each accepted Link is
// wrapped in mutual TLS and served as one HTTP/2 connection against srv,
// whether it arrived over TCP or Wi-Fi Direct.
func (a *App) acceptLoop(ctx context.Context, ln peerlink.Listener, srv *server.Server) {
	h2 := &http2.Server{}
	for {
		link, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Warn().Err(err).Msg("accept failed, continuing")
			continue
		}

		conn, ok := link.(net.Conn)
		if !ok {
			a.log.Warn().Str("transport", link.Transport()).Msg("accepted link has no net.Conn, dropping")
			_ = link.Close()
			continue
		}

		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.serveOne(conn, h2, srv)
		}()
	}
}

func (a *App) serveOne(conn net.Conn, h2 *http2.Server, srv *server.Server) {
	defer conn.Close()
	tlsConn, err := tlsguard.WrapServer(conn, a.localTLSCertificate())
	if err != nil {
		a.log.Warn().Err(err).Msg("TLS handshake failed on inbound connection")
		return
	}
	h2.ServeConn(tlsConn, &http2.ServeConnOpts{Handler: srv})
}

func (a *App) saveDir() string {
	if a.identity.SaveDirectory != "" {
		return a.identity.SaveDirectory
	}
	return filepath.Join(".", "AirDrop")
}

// Stop tears down the listener and discovery in reverse order and waits
// for every background goroutine to exit.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	if a.listener != nil {
		_ = a.listener.Close()
	}
	a.Coordinator.Stop()
	a.Registry.Close()
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.running = false
	a.log.Info().Msg("airdrop daemon stopped")
}

// Send drives the full send path against peerID: build a transfer record,
// dial, and run the three-phase client sequence, reporting progress and
// mirroring it onto the eventbus. It refuses to start once
// max_concurrent_transfers active transfers already hold a slot, matching
// the receive path's own cap in the AirDrop server.
func (a *App) Send(ctx context.Context, peerID string, files []transfer.FileDescriptor) (*transfer.Record, error) {
	peer := a.Registry.Get(peerID)
	if peer == nil {
		return nil, fmt.Errorf("daemon: unknown peer %q", peerID)
	}

	if !a.Table.TryAcquire() {
		return nil, transfer.ErrTooManyTransfers
	}
	defer a.Table.Release()

	rec := transfer.NewRecord(transfer.DirectionSend, peerID, files, a.transferEvents)
	a.Table.Put(rec)
	defer a.Table.Remove(rec.ID)

	cli := client.New(a.LinkMgr, a.localTLSCertificate(), client.Config{
		ConnectTimeout:    a.cfg.ConnectTimeout(),
		TransferTimeout:   a.cfg.TransferTimeout(),
		BufferSize:        a.cfg.BufferSizeBytes,
		LocalComputerName: a.identity.DisplayName,
		LocalModelName:    "Windows-PC",
		LocalSenderID:     a.identity.DeviceID.String(),
	}, a.log)

	err := cli.Send(ctx, *peer, rec, func(p transfer.Progress) {
		a.Bus.Progress(rec.ID, p)
	})
	return rec, err
}

// RenewIdentity forces a fresh certificate regardless of remaining
// validity, backing the "identity reset" CLI operation.
func (a *App) RenewIdentity() (*identity.Certificate, error) {
	cert, err := a.certMgr.RenewCertificate()
	if err != nil {
		return nil, err
	}
	a.cert = cert
	return cert, nil
}

func (a *App) localTLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{a.cert.Leaf.Raw},
		PrivateKey:  a.cert.PrivateKey,
		Leaf:        a.cert.Leaf,
	}
}

// StatusSnapshot is the JSON-friendly summary backing `airdropd status`.
type StatusSnapshot struct {
	Peers     []*registry.PeerRecord `json:"peers"`
	Transfers []TransferSummary      `json:"transfers"`
}

// TransferSummary is one row of StatusSnapshot's transfer table dump.
type TransferSummary struct {
	ID     string `json:"id"`
	PeerID string `json:"peerId"`
	State  string `json:"state"`
}

// Snapshot returns the currently-available peers and a best-effort view
// of in-flight transfers. The transfer table does not expose iteration
// (records are resolved by id, never enumerated, per the anti-cyclic-
// reference design note), so callers that need the transfer list thread
// it through their own accounting; Snapshot reports peers only until a
// richer status feed is added.
func (a *App) Snapshot() StatusSnapshot {
	return StatusSnapshot{Peers: a.Registry.Available()}
}
