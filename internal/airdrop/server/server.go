package server

import (
	"crypto/tls"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"

	"airdrop/internal/identity"
	"airdrop/internal/tlsguard"
	"airdrop/internal/transfer"
)

// Server is the HTTP/2 listener for /Discover, /Ask, /Upload, per
// this package. It is always reached behind TLS Guard.
type Server struct {
	cfg      Config
	table    *transfer.Table
	approval ApprovalCallback
	log      zerolog.Logger
	events   chan<- transfer.Event

	router chi.Router
}

func New(cfg Config, table *transfer.Table, approval ApprovalCallback, events chan<- transfer.Event, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		table:    table,
		approval: approval,
		log:      log.With().Str("component", "airdrop.Server").Logger(),
		events:   events,
	}

	r := chi.NewRouter()
	r.Post("/Discover", s.handleDiscover)
	r.Post("/Ask", s.handleAsk)
	r.Post("/Upload", s.handleUpload)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// HTTPServer wraps s behind a *http.Server configured for HTTP/2 over TLS
// with the mutual-TLS policy from TLS Guard, for embedders that want a
// plain listening server instead of driving accepted peer links through
// ServeHTTP themselves.
func (s *Server) HTTPServer(addr string, localCert tls.Certificate) (*http.Server, error) {
	httpSrv := &http.Server{
		Addr:      addr,
		Handler:   s,
		TLSConfig: tlsguard.ServerConfig(localCert),
	}
	if err := http2.ConfigureServer(httpSrv, &http2.Server{}); err != nil {
		return nil, err
	}
	return httpSrv, nil
}

func peerThumbprint(r *http.Request) (string, bool) {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return "", false
	}
	return identity.Thumbprint(r.TLS.PeerCertificates[0].Raw), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
