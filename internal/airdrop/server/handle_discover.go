package server

import (
	"io"
	"net/http"

	"airdrop/internal/airdrop/wire"
)

// handleDiscover is idempotent with no state change.
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	if _, err := wire.ParseDiscoverRequest(body); err != nil {
		s.log.Debug().Err(err).Msg("malformed /Discover body")
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, wire.DiscoverResponse{
		ReceiverComputerName: s.cfg.LocalComputerName,
		ReceiverModelName:    s.cfg.LocalModelName,
		ReceiverMediaCapabilities: wire.MediaCapabilities{
			Files:    true,
			Photos:   true,
			Videos:   true,
			Contacts: false,
			Urls:     true,
		},
	})
}
