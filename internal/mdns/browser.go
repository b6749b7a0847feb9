package mdns

import (
	"context"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"
)

const browseCycleTimeout = 5 * time.Second
const browseCycleRest = 10 * time.Second

// Browser issues a continuous PTR query for the AirDrop service type,
// resolving each instance's SRV/A/AAAA/TXT and emitting the full record
// atomically.
type Browser struct {
	log    zerolog.Logger
	events chan Event

	skipInstance string // our own published instance name, never reported
}

func NewBrowser(log zerolog.Logger, ownInstanceName string) *Browser {
	return &Browser{
		log:          log.With().Str("component", "mdns.Browser").Logger(),
		events:       make(chan Event, 64),
		skipInstance: ownInstanceName,
	}
}

// Events returns the stream of publish/removal notifications.
func (b *Browser) Events() <-chan Event { return b.events }

// Run browses continuously until ctx is cancelled, restarting a fresh
// resolver/channel each cycle per zeroconf's single-shot Browse contract.
func (b *Browser) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b.browseCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(browseCycleRest):
		}
	}
}

func (b *Browser) browseCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Debug().Interface("panic", r).Msg("recovered from mDNS browse panic")
		}
	}()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to create mDNS resolver")
		return
	}

	entries := make(chan *zeroconf.ServiceEntry, 16)
	cycleCtx, cancel := context.WithTimeout(ctx, browseCycleTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				b.log.Debug().Interface("panic", r).Msg("recovered from mDNS browse goroutine panic")
			}
		}()
		_ = resolver.Browse(cycleCtx, ServiceType, ServiceDomain, entries)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			if entry == nil || entry.Instance == b.skipInstance {
				continue
			}
			b.handleEntry(entry)
		case <-cycleCtx.Done():
			return
		case <-done:
			return
		}
	}
}

func (b *Browser) handleEntry(entry *zeroconf.ServiceEntry) {
	record := Record{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addrs:        append(append([]net.IP{}, entry.AddrIPv4...), entry.AddrIPv6...),
		TXT:          parseTXT(entry.Text),
	}

	removed := entry.TTL == 0
	select {
	case b.events <- Event{Removed: removed, Record: record}:
	default:
		b.log.Warn().Str("instance", entry.Instance).Msg("mdns event channel full, dropping")
	}
}

func parseTXT(text []string) map[string]string {
	out := make(map[string]string, len(text))
	for _, kv := range text {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}
