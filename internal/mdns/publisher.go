package mdns

import (
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"
)

// Publisher advertises a single AirDrop service instance. Per this package
// the advertised tuple (name, port, TXT) is fixed for the life of the
// process; identity or port changes require Stop then Start again.
type Publisher struct {
	log    zerolog.Logger
	mu     sync.Mutex
	server *zeroconf.Server
}

func NewPublisher(log zerolog.Logger) *Publisher {
	return &Publisher{log: log.With().Str("component", "mdns.Publisher").Logger()}
}

// Metadata is the set of facts needed to build the TXT record for the
// local instance.
type Metadata struct {
	DisplayName         string
	DeviceType          string
	Transports          []string
	Capabilities        []string
	Version             string
	IdentityHashFirst32 string
}

func (m Metadata) txtRecords() []string {
	return []string{
		TXTDeviceType + "=" + m.DeviceType,
		TXTTransport + "=" + joinComma(m.Transports),
		TXTCapabilities + "=" + joinComma(m.Capabilities),
		TXTVersion + "=" + m.Version,
		TXTIdentityID + "=" + m.IdentityHashFirst32,
	}
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

// Start registers the service instance and begins responding to PTR/SRV/TXT
// queries. Interface selection follows the Wi-Fi-preferred rule.
func (p *Publisher) Start(meta Metadata, port int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server != nil {
		return nil
	}

	instance := SanitizeInstanceName(meta.DisplayName)

	var ifaces []net.Interface
	all, err := net.Interfaces()
	if err == nil {
		if chosen := selectInterface(all); chosen != nil {
			ifaces = []net.Interface{*chosen}
		}
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, meta.txtRecords(), ifaces)
	if err != nil {
		p.log.Warn().Err(err).Msg("mDNS responder unavailable")
		return fmt.Errorf("%w: %v", ErrResponderUnavailable, err)
	}

	p.server = server
	p.log.Info().Str("instance", instance).Int("port", port).Msg("mDNS responder started")
	return nil
}

// Stop withdraws the published instance (sends a goodbye packet).
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server == nil {
		return
	}
	p.server.Shutdown()
	p.server = nil
	p.log.Info().Msg("mDNS responder stopped")
}
