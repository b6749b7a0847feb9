package registry

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const sweepInterval = 10 * time.Second

// Sighting is what a discovery sub-service (BLE scanner, mDNS browser)
// reports; it carries only the fields that channel actually observed, so
// AddOrUpdate's merge step can tell "not observed" from "observed empty".
type Sighting struct {
	PeerID      string
	DisplayName string
	DeviceClass DeviceClass
	IP          net.IP
	Port        uint16
	Metadata    map[string]string

	// IdentityHash is the hex identity-hash prefix this channel observed
	// (16 chars over BLE, 32 over mDNS TXT), used to rendezvous the two
	// channels' sightings of one device onto one record.
	IdentityHash string
	// FallbackID is true when PeerID is the BLE MAC fallback rather than
	// the stable mDNS instance name.
	FallbackID bool
}

// rendezvousHexLen is the identity-hash prefix length both channels can
// produce: the BLE frame carries 8 raw bytes (16 hex chars), the mDNS TXT
// id key 32 hex chars.
const rendezvousHexLen = 16

func rendezvousKey(hexHash string) string {
	if len(hexHash) < rendezvousHexLen {
		return ""
	}
	return strings.ToLower(hexHash[:rendezvousHexLen])
}

// Registry is the concurrency-safe peer_id -> PeerRecord map described in
// this package. One mutex guards the map; merging is pure and happens
// entirely inside that critical section, matching the concurrency model's
// requirement that no suspension point occurs while the lock is held.
type Registry struct {
	mu               sync.Mutex
	peers            map[string]*PeerRecord
	byHash           map[string]string // rendezvous prefix -> peer_id
	expirationWindow time.Duration

	events    chan Event
	log       zerolog.Logger
	stop      chan struct{}
	stopOnce  sync.Once
	sweepDone chan struct{}
}

// New creates a Registry whose entries expire after expirationWindow
// (default 60s when expirationWindow <= 0).
func New(expirationWindow time.Duration, log zerolog.Logger) *Registry {
	if expirationWindow <= 0 {
		expirationWindow = 60 * time.Second
	}
	r := &Registry{
		peers:            make(map[string]*PeerRecord),
		byHash:           make(map[string]string),
		expirationWindow: expirationWindow,
		events:           make(chan Event, 256),
		log:              log.With().Str("component", "registry").Logger(),
		stop:             make(chan struct{}),
		sweepDone:        make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Events returns the ordered event stream. Exactly one stream exists per
// Registry; consumers that need fan-out should multiplex it themselves
// (see internal/eventbus).
func (r *Registry) Events() <-chan Event { return r.events }

// Close stops the sweeper and closes the event channel.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
		<-r.sweepDone
		close(r.events)
	})
}

// AddOrUpdate inserts or merges s into the registry, per the merge rules
// in this package: display_name/device_class/ip/port/identity_hash
// overwritten only if the incoming value is non-empty/non-Unknown/
// non-zero; metadata keys are unioned with incoming values winning on
// conflict. A sighting whose identity-hash prefix matches an existing
// record merges into that record even under a different peer_id, so the
// BLE and mDNS views of one device collapse to one record; when the
// match upgrades a BLE-fallback id to the stable mDNS instance name, the
// fallback record retires (removed event) and the merged record appears
// under the new id (added event).
func (r *Registry) AddOrUpdate(s Sighting) {
	now := time.Now()
	key := rendezvousKey(s.IdentityHash)

	r.mu.Lock()
	existing, found := r.peers[s.PeerID]
	if !found && key != "" {
		if aliasID, ok := r.byHash[key]; ok {
			existing, found = r.peers[aliasID]
		}
	}

	if !found {
		rec := &PeerRecord{
			PeerID:           s.PeerID,
			DisplayName:      s.DisplayName,
			DeviceClass:      s.DeviceClass,
			IdentityHash:     s.IdentityHash,
			IP:               s.IP,
			Port:             s.Port,
			Metadata:         copyMeta(s.Metadata),
			FirstSeen:        now,
			LastSeen:         now,
			expirationWindow: r.expirationWindow,
			fallbackID:       s.FallbackID,
			hashKey:          key,
		}
		if rec.DeviceClass == "" {
			rec.DeviceClass = DeviceUnknown
		}
		r.peers[s.PeerID] = rec
		if key != "" {
			r.byHash[key] = s.PeerID
		}
		r.mu.Unlock()
		r.emit(Event{Kind: EventAdded, Peer: rec.Clone()})
		return
	}

	var retired *PeerRecord
	if existing.fallbackID && !s.FallbackID && existing.PeerID != s.PeerID {
		retired = existing.Clone()
		delete(r.peers, existing.PeerID)
		existing.PeerID = s.PeerID
		existing.fallbackID = false
		r.peers[s.PeerID] = existing
	}

	// A fallback sighting's display name is often just the MAC tail; it
	// fills an empty field but never replaces a name the stable channel
	// already supplied.
	if s.DisplayName != "" && (existing.DisplayName == "" || !s.FallbackID) {
		existing.DisplayName = s.DisplayName
	}
	if s.DeviceClass != "" && s.DeviceClass != DeviceUnknown {
		existing.DeviceClass = s.DeviceClass
	}
	if len(s.IdentityHash) > len(existing.IdentityHash) {
		existing.IdentityHash = s.IdentityHash
	}
	if s.IP != nil {
		existing.IP = s.IP
	}
	if s.Port != 0 {
		existing.Port = s.Port
	}
	if existing.Metadata == nil {
		existing.Metadata = make(map[string]string)
	}
	for k, v := range s.Metadata {
		existing.Metadata[k] = v
	}
	if existing.hashKey == "" && key != "" {
		existing.hashKey = key
	}
	if existing.hashKey != "" {
		r.byHash[existing.hashKey] = existing.PeerID
	}
	existing.LastSeen = now
	merged := existing.Clone()
	r.mu.Unlock()

	if retired != nil {
		r.emit(Event{Kind: EventRemoved, Peer: retired})
		r.emit(Event{Kind: EventAdded, Peer: merged})
		return
	}
	r.emit(Event{Kind: EventUpdated, Peer: merged})
}

// Get returns a snapshot of the record for peerID, or nil if unknown.
func (r *Registry) Get(peerID string) *PeerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peers[peerID].Clone()
}

// Snapshot returns every record currently known, regardless of
// availability.
func (r *Registry) Snapshot() []*PeerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PeerRecord, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p.Clone())
	}
	return out
}

// Available returns only records with available == true, i.e. seen within
// the expiration window; this backs the Discovery Coordinator's snapshot
// accessor.
func (r *Registry) Available() []*PeerRecord {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PeerRecord, 0, len(r.peers))
	for _, p := range r.peers {
		if p.Available(now) {
			out = append(out, p.Clone())
		}
	}
	return out
}

func (r *Registry) sweepLoop() {
	defer close(r.sweepDone)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

func (r *Registry) sweepOnce() {
	now := time.Now()
	var removed []*PeerRecord

	r.mu.Lock()
	for id, p := range r.peers {
		if !p.Available(now) {
			removed = append(removed, p.Clone())
			delete(r.peers, id)
			if p.hashKey != "" {
				delete(r.byHash, p.hashKey)
			}
		}
	}
	r.mu.Unlock()

	for _, p := range removed {
		r.log.Info().Str("peer_id", p.PeerID).Msg("peer expired")
		r.emit(Event{Kind: EventRemoved, Peer: p})
	}
}

func (r *Registry) emit(e Event) {
	select {
	case r.events <- e:
	default:
		r.log.Warn().Str("peer_id", e.Peer.PeerID).Str("kind", e.Kind.String()).Msg("event channel full, dropping")
	}
}

func copyMeta(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
