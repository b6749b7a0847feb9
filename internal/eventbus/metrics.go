package eventbus

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the Prometheus collectors the bus keeps up to date as it
// translates registry/transfer events. Registered against a private
// registry rather than prometheus.DefaultRegisterer so multiple Bus
// instances (as in tests) never collide.
type metrics struct {
	registry *prometheus.Registry

	peersKnown      prometheus.Gauge
	transfersActive prometheus.Gauge
	transfersTotal  *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()

	m := &metrics{
		registry: reg,
		peersKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "airdrop",
			Subsystem: "discovery",
			Name:      "peers_known",
			Help:      "Peers currently present in the device registry.",
		}),
		transfersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "airdrop",
			Subsystem: "transfer",
			Name:      "active",
			Help:      "Transfers currently in the Transferring state.",
		}),
		transfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airdrop",
			Subsystem: "transfer",
			Name:      "total",
			Help:      "Transfers reaching a terminal state, by final state.",
		}, []string{"state"}),
	}

	reg.MustRegister(m.peersKnown, m.transfersActive, m.transfersTotal)
	return m
}
