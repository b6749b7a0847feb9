package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"airdrop/internal/airdrop/wire"
	"airdrop/internal/transfer"
)

// handleAsk builds a Pending->AwaitingApproval TransferRecord and consults
// the approval callback. A 200 response requires genuine
// approval (or auto_accept); 403 on rejection; 408 on timeout. This
// tightens the source's auto-200 behavior.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	req, err := wire.ParseAskRequest(body)
	if err != nil {
		s.log.Debug().Err(err).Msg("malformed /Ask body")
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	thumbprint, haveCert := peerThumbprint(r)

	files := make([]transfer.FileDescriptor, len(req.Files))
	var total int64
	for i, f := range req.Files {
		files[i] = transfer.FileDescriptor{
			Name:        f.FileName,
			Size:        f.FileSize,
			MimeType:    f.FileType,
			IsDirectory: f.FileIsDirectory,
		}
		total += f.FileSize
	}

	rec := transfer.NewRecord(transfer.DirectionReceive, req.SenderID, files, s.events)
	s.table.Put(rec)
	if err := rec.Transition(transfer.StateAwaitingApproval, nil); err != nil {
		s.log.Error().Err(err).Msg("unexpected transition failure building /Ask record")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.approvalTimeout())
	defer cancel()

	decision, timedOut := awaitApproval(ctx, s.approval, req, s.cfg.AutoAccept)

	switch {
	case timedOut:
		_ = rec.Transition(transfer.StateFailed, ErrApprovalTimedOut)
		s.table.Remove(rec.ID)
		s.log.Info().Str("transfer_id", rec.ID).Msg("/Ask approval timed out")
		writeJSON(w, http.StatusRequestTimeout, wire.AskResponse{})
		return
	case !decision.Approve:
		reason := ErrApprovalRejected
		if decision.Reason != "" {
			reason = fmt.Errorf("%w: %s", ErrApprovalRejected, decision.Reason)
		}
		_ = rec.Transition(transfer.StateRejected, reason)
		s.table.Remove(rec.ID)
		s.log.Info().Str("transfer_id", rec.ID).Str("reason", decision.Reason).Msg("/Ask rejected")
		writeJSON(w, http.StatusForbidden, wire.AskResponse{})
		return
	}
	rec.SaveDir = decision.SavePath

	// The slot is only worth reserving when a client certificate lets
	// handleUpload later find and release it; without one, /Upload can
	// never correlate to this /Ask anyway, so the record is dropped as
	// soon as the response is written.
	if haveCert {
		if !s.table.TryAcquire() {
			_ = rec.Transition(transfer.StateFailed, transfer.ErrTooManyTransfers)
			s.table.Remove(rec.ID)
			s.log.Info().Str("transfer_id", rec.ID).Msg("/Ask approved but max_concurrent_transfers reached")
			http.Error(w, transfer.ErrTooManyTransfers.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	if err := rec.Transition(transfer.StateApproved, nil); err != nil {
		if haveCert {
			s.table.Release()
		}
		s.table.Remove(rec.ID)
		s.log.Error().Err(err).Msg("unexpected transition failure approving /Ask record")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if haveCert {
		s.table.MarkApproved(thumbprint, rec.ID)
	} else {
		s.table.Remove(rec.ID)
	}

	s.log.Info().Str("transfer_id", rec.ID).Int("file_count", len(files)).Int64("total_bytes", total).Msg("/Ask approved")
	writeJSON(w, http.StatusOK, wire.AskResponse{
		ReceiverComputerName: s.cfg.LocalComputerName,
		ReceiverModelName:    s.cfg.LocalModelName,
	})
}
