package peerlink

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"airdrop/internal/registry"
)

// pooledLink pairs a Link with the connection_id it was registered under.
type pooledLink struct {
	id   string
	link Link
}

// Manager holds an ordered list of transport providers and the pool of
// links opened through them.
type Manager struct {
	providers []Provider
	log       zerolog.Logger

	mu   sync.Mutex
	pool map[string]pooledLink
}

// NewManager builds a Manager with providers tried in the given order
// (Wi-Fi Direct first, TCP second, by convention).
func NewManager(log zerolog.Logger, providers ...Provider) *Manager {
	return &Manager{
		providers: providers,
		log:       log.With().Str("component", "peerlink.Manager").Logger(),
		pool:      make(map[string]pooledLink),
	}
}

// ConnectionID identifies one pooled link; callers close by id.
type ConnectionID string

// Connect iterates providers in order, skipping any reporting themselves
// unavailable, and returns the first successful link. Fails with
// ErrNoTransport only once every provider has been tried.
func (m *Manager) Connect(ctx context.Context, peer registry.PeerRecord) (ConnectionID, Link, error) {
	var lastErr error
	for _, provider := range m.providers {
		if !provider.Available() {
			continue
		}
		link, err := provider.Connect(ctx, peer)
		if err != nil {
			m.log.Debug().Str("provider", provider.Name()).Str("peer_id", peer.PeerID).Err(err).Msg("transport attempt failed")
			lastErr = err
			continue
		}

		id := ConnectionID(uuid.NewString())
		m.mu.Lock()
		m.pool[string(id)] = pooledLink{id: string(id), link: link}
		m.mu.Unlock()

		m.log.Info().Str("connection_id", string(id)).Str("transport", provider.Name()).Str("peer_id", peer.PeerID).Msg("link established")
		return id, link, nil
	}

	if lastErr != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNoTransport, lastErr)
	}
	return "", nil, ErrNoTransport
}

// Close closes and unregisters the link for id. Links are not reused
// across transfers, so Close always removes the pool entry.
func (m *Manager) Close(id ConnectionID) error {
	m.mu.Lock()
	pl, ok := m.pool[string(id)]
	if ok {
		delete(m.pool, string(id))
	}
	m.mu.Unlock()

	if !ok {
		return ErrUnknownConnection
	}
	return pl.link.Close()
}

// Active returns the number of currently pooled links.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pool)
}
