// Package registry maintains the unified peer_id -> PeerRecord map that
// merges Bluetooth-LE and mDNS sightings, ageing entries out on a timer and
// emitting a strictly-ordered added/updated/removed event stream per peer.
package registry

import (
	"net"
	"time"
)

// DeviceClass mirrors the device_class enumeration.
type DeviceClass string

const (
	DeviceUnknown   DeviceClass = "Unknown"
	DeviceIPhone    DeviceClass = "iPhone"
	DeviceIPad      DeviceClass = "iPad"
	DeviceMac       DeviceClass = "Mac"
	DeviceWindowsPC DeviceClass = "Windows-PC"
)

// PeerRecord is the unified view of a remote device, merged from BLE and
// mDNS sightings. See this package for the merge invariants this type's
// owner (Registry) must uphold.
type PeerRecord struct {
	PeerID      string
	DisplayName string
	DeviceClass DeviceClass

	// IdentityHash is the longest hex prefix of the peer's identity hash
	// observed so far: 16 chars from the BLE frame, 32 from the mDNS TXT
	// id key. It is the rendezvous token that collapses BLE and mDNS
	// sightings of one device into one record.
	IdentityHash string

	IP   net.IP
	Port uint16
	// Metadata carries freeform TXT-derived strings: transport list,
	// capability list, version, identity-hash prefix.
	Metadata map[string]string

	FirstSeen time.Time
	LastSeen  time.Time

	expirationWindow time.Duration

	// fallbackID is true while the record is keyed by the BLE MAC
	// fallback; the first mDNS sighting that rendezvouses on the identity
	// hash re-keys the record to the service instance name.
	fallbackID bool
	// hashKey is the normalized rendezvous prefix this record is indexed
	// under, empty if no sighting has carried an identity hash yet.
	hashKey string
}

// Available reports whether now-LastSeen is within the expiration window,
// per the data model's availability-flag definition.
func (p *PeerRecord) Available(now time.Time) bool {
	window := p.expirationWindow
	if window <= 0 {
		window = 60 * time.Second
	}
	return now.Sub(p.LastSeen) <= window
}

// Clone returns a deep-enough copy safe to hand to a consumer without
// exposing the registry's internal record (see the design note on never
// holding a record reference across a suspension point).
func (p *PeerRecord) Clone() *PeerRecord {
	if p == nil {
		return nil
	}
	meta := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		meta[k] = v
	}
	cp := *p
	cp.Metadata = meta
	return &cp
}
