package ble

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"
)

// Publisher advertises GeneralDiscoverable|ClassicNotSupported with the
// AirDrop service UUID and Apple manufacturer data. The advertisement is
// immutable once started: an identity change requires a restart, so
// Publisher exposes no in-place update.
type Publisher struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewPublisher binds to the platform's default Bluetooth adapter.
func NewPublisher(log zerolog.Logger) *Publisher {
	return &Publisher{adapter: bluetooth.DefaultAdapter, log: log.With().Str("component", "ble.Publisher").Logger()}
}

// Start enables the radio and begins advertising identityHash (the
// device's SHA-256 identity hash; only its first 8 bytes go over the air).
// On radio failure the beacon disables cleanly and logs once; the caller
// is not expected to retry.
func (p *Publisher) Start(identityHash []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	if err := p.adapter.Enable(); err != nil {
		p.log.Warn().Err(err).Msg("BLE radio unavailable, beacon disabled")
		return fmt.Errorf("%w: %v", ErrRadioUnavailable, err)
	}

	serviceUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return fmt.Errorf("ble: parse service uuid: %w", err)
	}

	adv := p.adapter.DefaultAdvertisement()
	err = adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    "",
		ServiceUUIDs: []bluetooth.UUID{serviceUUID},
		ManufacturerData: map[uint16]interface{}{
			AppleCompanyID: encodeFrame(identityHash),
		},
	})
	if err != nil {
		return fmt.Errorf("ble: configure advertisement: %w", err)
	}

	if err := adv.Start(); err != nil {
		p.log.Warn().Err(err).Msg("BLE advertisement rejected by OS, beacon disabled")
		return fmt.Errorf("%w: %v", ErrRadioUnavailable, err)
	}

	p.adv = adv
	p.running = true
	p.log.Info().Msg("BLE beacon started")
	return nil
}

// Stop halts advertising. Safe to call on an already-stopped Publisher.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.adv == nil {
		return nil
	}
	err := p.adv.Stop()
	p.running = false
	p.log.Info().Msg("BLE beacon stopped")
	return err
}
