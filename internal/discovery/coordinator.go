// Package discovery composes the BLE beacon, mDNS responder, and device
// registry into a single lifecycle façade.
package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"airdrop/internal/ble"
	"airdrop/internal/config"
	"airdrop/internal/identity"
	"airdrop/internal/mdns"
	"airdrop/internal/registry"
)

const rescanGap = 500 * time.Millisecond

// publishBackoffCap bounds the exponential retry delay for transient
// beacon/responder publish failures.
const publishBackoffCap = 30 * time.Second

// Identity is the subset of local identity state the coordinator needs to
// build beacon/responder payloads.
type Identity struct {
	DisplayName     string
	DeviceType      string
	IdentityHash    string // full hex hash; beacon/TXT each truncate what they need
	Transports      []string
	Capabilities    []string
	Version         string
}

// Coordinator brings up/down the scanner, browser, publisher, and
// responder as a unit and feeds all sightings into a Registry.
type Coordinator struct {
	log      zerolog.Logger
	registry *registry.Registry
	cfg      *config.Config
	identity Identity

	scanner   *ble.Scanner
	beacon    *ble.Publisher
	browser   *mdns.Browser
	responder *mdns.Publisher

	mu            sync.Mutex
	running       bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	browserParent context.Context
	browserCancel context.CancelFunc
	browserDone   chan struct{}
}

func New(cfg *config.Config, id Identity, reg *registry.Registry, log zerolog.Logger) *Coordinator {
	log = log.With().Str("component", "discovery.Coordinator").Logger()
	return &Coordinator{
		log:       log,
		registry:  reg,
		cfg:       cfg,
		identity:  id,
		scanner:   ble.NewScanner(log),
		beacon:    ble.NewPublisher(log),
		browser:   mdns.NewBrowser(log, mdns.SanitizeInstanceName(id.DisplayName)),
		responder: mdns.NewPublisher(log),
	}
}

// Start brings up the scanner and browser unconditionally, and the beacon
// and responder only when visibility != Off.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := c.scanner.Start(runCtx); err != nil {
		c.log.Warn().Err(err).Msg("BLE scanner unavailable, continuing without it")
	}
	c.browserParent = runCtx
	c.startBrowser(runCtx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pumpBLE(runCtx)
	}()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.pumpMDNS(runCtx)
	}()

	if c.cfg.Visibility != config.VisibilityOff {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.publishLoop(runCtx)
		}()
	}

	c.running = true
	c.log.Info().Str("visibility", string(c.cfg.Visibility)).Msg("discovery coordinator started")
	return nil
}

// startBrowser launches the mDNS browser's Run loop under a context
// derived from parent, tracking its own cancel/done pair so Rescan can
// stop and relaunch just this goroutine without tearing down the rest of
// the coordinator. Must be called with c.mu held.
func (c *Coordinator) startBrowser(parent context.Context) {
	browserCtx, cancel := context.WithCancel(parent)
	c.browserCancel = cancel
	done := make(chan struct{})
	c.browserDone = done
	go func() {
		defer close(done)
		c.browser.Run(browserCtx)
	}()
}

// publishLoop brings the beacon and responder up, retrying transient
// failures with exponential backoff capped at publishBackoffCap. A radio
// reported unavailable is disabled outright and never retried; the
// beacon already logged that once.
func (c *Coordinator) publishLoop(ctx context.Context) {
	beaconSettled, responderUp := false, false
	delay := time.Second
	for {
		if !beaconSettled {
			err := c.beacon.Start(identity.MustDecodeHashPrefix(c.identity.IdentityHash, 8))
			if err == nil || errors.Is(err, ble.ErrRadioUnavailable) {
				beaconSettled = true
			} else {
				c.log.Warn().Err(err).Dur("retry_in", delay).Msg("BLE beacon failed, will retry")
			}
		}
		if !responderUp {
			meta := mdns.Metadata{
				DisplayName:         c.identity.DisplayName,
				DeviceType:          c.identity.DeviceType,
				Transports:          c.identity.Transports,
				Capabilities:        c.identity.Capabilities,
				Version:             c.identity.Version,
				IdentityHashFirst32: firstN(c.identity.IdentityHash, 32),
			}
			if err := c.responder.Start(meta, int(c.cfg.Port)); err == nil {
				responderUp = true
			} else {
				c.log.Warn().Err(err).Dur("retry_in", delay).Msg("mDNS responder failed, will retry")
			}
		}
		if beaconSettled && responderUp {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > publishBackoffCap {
			delay = publishBackoffCap
		}
	}
}

// Stop tears down in reverse order: publishing first, then the passive
// scanner/browser and their pump goroutines.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.responder.Stop()
	_ = c.beacon.Stop()
	c.scanner.Stop()
	c.wg.Wait()
	if c.browserDone != nil {
		<-c.browserDone
	}

	c.running = false
	c.log.Info().Msg("discovery coordinator stopped")
}

// Rescan stops the running mDNS browser, waits rescanGap, and relaunches
// it against the same instance-skip filter, forcing a fresh PTR query
// cycle instead of waiting for browseCycleRest to elapse naturally. A
// no-op when the coordinator is not running.
func (c *Coordinator) Rescan() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		c.log.Info().Msg("rescan requested while stopped, ignoring")
		return
	}
	cancel := c.browserCancel
	done := c.browserDone
	parent := c.browserParent
	c.mu.Unlock()

	c.log.Info().Msg("rescan requested, restarting mDNS browser")
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	time.Sleep(rescanGap)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.startBrowser(parent)
}

// Snapshot returns only currently-available peer records.
func (c *Coordinator) Snapshot() []*registry.PeerRecord {
	return c.registry.Available()
}

func (c *Coordinator) pumpBLE(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-c.scanner.Sightings():
			if !ok {
				return
			}
			c.registry.AddOrUpdate(registry.Sighting{
				PeerID:       s.PeerID,
				DisplayName:  s.DisplayName,
				IdentityHash: s.IdentityHashPrefix,
				FallbackID:   true,
				Metadata:     map[string]string{"identity_hash_prefix": s.IdentityHashPrefix},
			})
		case peerID, ok := <-c.scanner.Lost():
			if !ok {
				return
			}
			// The scanner's own 10s out-of-range window is distinct from
			// the registry's 60s peer-expiration sweep, which still owns
			// eviction of the merged record: a peer lost from BLE range
			// may still be visible over mDNS.
			c.log.Debug().Str("peer_id", peerID).Msg("peer out of BLE range")
		}
	}
}

func (c *Coordinator) pumpMDNS(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-c.browser.Events():
			if !ok {
				return
			}
			if e.Removed {
				// The registry's own sweeper owns removal timing;
				// a goodbye packet just lets the record age out on schedule
				// rather than forcing a premature removal here.
				continue
			}
			c.registry.AddOrUpdate(registry.Sighting{
				PeerID:       e.Record.InstanceName,
				DisplayName:  e.Record.InstanceName,
				DeviceClass:  deviceClassFromTXT(e.Record.TXT),
				IdentityHash: e.Record.TXT[mdns.TXTIdentityID],
				IP:           firstIP(e.Record.Addrs),
				Port:         e.Record.Port,
				Metadata:     e.Record.TXT,
			})
		}
	}
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
