package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"
)

// Scanner runs a continuous active scan, classifying each received
// advertisement as an AirDrop peer when either the service UUID matches or
// the manufacturer data carries Apple's company ID.
type Scanner struct {
	adapter *bluetooth.Adapter
	log     zerolog.Logger

	sightings chan Sighting
	lost      chan string
	tracker   *rangeTracker

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	ageDone chan struct{}
}

func NewScanner(log zerolog.Logger) *Scanner {
	return &Scanner{
		adapter:   bluetooth.DefaultAdapter,
		log:       log.With().Str("component", "ble.Scanner").Logger(),
		sightings: make(chan Sighting, 64),
		lost:      make(chan string, 64),
		tracker:   newRangeTracker(),
	}
}

// Sightings returns the stream of classified AirDrop-peer advertisements.
func (s *Scanner) Sightings() <-chan Sighting { return s.sightings }

// Lost returns the stream of peer ids the scanner has not re-observed
// within outOfRangeTimeout (10s), reported at most once per transition.
func (s *Scanner) Lost() <-chan string { return s.lost }

// Start enables the radio and begins scanning in the background. Radio
// failure disables the scanner cleanly with a single log line and no
// restart loop, matching the beacon's failure policy.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if err := s.adapter.Enable(); err != nil {
		s.log.Warn().Err(err).Msg("BLE radio unavailable, scanner disabled")
		return fmt.Errorf("%w: %v", ErrRadioUnavailable, err)
	}

	serviceUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return fmt.Errorf("ble: parse service uuid: %w", err)
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.ageDone = make(chan struct{})
	s.running = true

	go s.scanLoop(ctx, serviceUUID)
	go s.ageLoop(ctx)
	s.log.Info().Msg("BLE scanner started")
	return nil
}

// Stop halts scanning and waits for the background goroutine to exit.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	ageDone := s.ageDone
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	if ageDone != nil {
		<-ageDone
	}
	s.log.Info().Msg("BLE scanner stopped")
}

// ageLoop sweeps the range tracker every rangeSweepInterval, reporting on
// Lost() any peer not re-observed within outOfRangeTimeout. This is the
// scanner's own 10s notion of presence, separate from the registry's 60s
// peer-expiration sweep.
func (s *Scanner) ageLoop(ctx context.Context) {
	defer close(s.ageDone)
	ticker := time.NewTicker(rangeSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, peerID := range s.tracker.sweep(now, outOfRangeTimeout) {
				select {
				case s.lost <- peerID:
				default:
					s.log.Warn().Str("peer_id", peerID).Msg("lost channel full, dropping")
				}
			}
		}
	}
}

func (s *Scanner) scanLoop(ctx context.Context, serviceUUID bluetooth.UUID) {
	defer close(s.done)

	err := s.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		select {
		case <-s.stop:
			_ = adapter.StopScan()
			return
		case <-ctx.Done():
			_ = adapter.StopScan()
			return
		default:
		}

		if result.RSSI < inRangeThresholdDBm {
			return
		}

		sighting, matched := s.classify(result, serviceUUID)
		if !matched {
			return
		}
		s.tracker.touch(sighting.PeerID, sighting.Timestamp)

		select {
		case s.sightings <- sighting:
		default:
			s.log.Warn().Str("peer_id", sighting.PeerID).Msg("sighting channel full, dropping")
		}
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("BLE scan loop ended")
	}
}

func (s *Scanner) classify(result bluetooth.ScanResult, serviceUUID bluetooth.UUID) (Sighting, bool) {
	payload := result.AdvertisementPayload

	serviceMatch := payload.HasServiceUUID(serviceUUID)

	var hashPrefix string
	manufacturerMatch := false
	for companyID, data := range payload.ManufacturerData() {
		if companyID == AppleCompanyID {
			manufacturerMatch = true
			if hash8, ok := decodeFrame(data); ok {
				hashPrefix = fmt.Sprintf("%x", hash8)
			}
			break
		}
	}

	if !serviceMatch && !manufacturerMatch {
		return Sighting{}, false
	}

	mac := result.Address.String()
	displayName := payload.LocalName()
	if displayName == "" {
		displayName = lastSixOfMAC(mac)
	}

	return Sighting{
		PeerID:             FormatPeerID(mac),
		DisplayName:        displayName,
		RSSI:               int(result.RSSI),
		Timestamp:          time.Now(),
		IdentityHashPrefix: hashPrefix,
	}, true
}

// FormatPeerID formats a raw Bluetooth MAC as the fallback peer_id used
// until an mDNS sighting supplies a stable instance-name-derived id.
func FormatPeerID(mac string) string {
	return "ble:" + strings.ToLower(mac)
}

func lastSixOfMAC(mac string) string {
	clean := strings.ReplaceAll(mac, ":", "")
	clean = strings.ReplaceAll(clean, "-", "")
	if len(clean) < 6 {
		return clean
	}
	return clean[len(clean)-6:]
}
