package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"airdrop/internal/airdrop/wire"
	"airdrop/internal/transfer"
)

const timestampPartSuffix = "_timestamp"

// handleUpload streams each multipart part to disk. A preceding approved
// /Ask from the same TLS peer certificate thumbprint is required within
// the 5-minute correlation window; its absence is a 409.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	thumbprint, haveCert := peerThumbprint(r)
	if !haveCert {
		http.Error(w, "client certificate required", http.StatusUnauthorized)
		return
	}

	transferID, ok := s.table.ConsumeApproval(thumbprint)
	if !ok {
		s.log.Info().Str("thumbprint", thumbprint).Msg("/Upload with no preceding approved /Ask")
		http.Error(w, ErrUploadWithoutAsk.Error(), http.StatusConflict)
		return
	}
	// Releases the max_concurrent_transfers slot handleAsk reserved for
	// this transfer, regardless of how this request ends. The record is
	// dropped from the table too: it is terminal on every exit path below,
	// and callers that still hold the pointer keep its final state.
	defer s.table.Release()
	defer s.table.Remove(transferID)

	rec, ok := s.table.Get(transferID)
	if !ok {
		http.Error(w, ErrUploadWithoutAsk.Error(), http.StatusConflict)
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expected multipart/form-data", http.StatusBadRequest)
		return
	}

	if err := rec.Transition(transfer.StateTransferring, nil); err != nil {
		s.log.Debug().Err(err).Msg("upload started after record already left Approved")
	}

	saveDir := s.cfg.SaveDir
	if rec.SaveDir != "" {
		saveDir = rec.SaveDir
	}
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		s.failUpload(w, rec, fmt.Errorf("server: create save dir: %w", err))
		return
	}

	written := make(map[string]string)       // part name -> disk path
	timestamps := make(map[string]time.Time) // part name -> mtime sibling
	var filesReceived int

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.cleanup(written)
			s.failUpload(w, rec, fmt.Errorf("server: read multipart part: %w", err))
			return
		}

		name := part.FormName()
		if strings.HasSuffix(name, timestampPartSuffix) {
			base := strings.TrimSuffix(name, timestampPartSuffix)
			raw, err := io.ReadAll(part)
			part.Close()
			if err != nil {
				s.cleanup(written)
				s.failUpload(w, rec, fmt.Errorf("server: read timestamp part: %w", err))
				return
			}
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(raw))); err == nil {
				timestamps[base] = t
			}
			continue
		}

		n, err := s.writeFilePart(rec, part, name, saveDir, written)
		part.Close()
		if err != nil {
			s.cleanup(written)
			s.failUpload(w, rec, err)
			return
		}
		if n == 0 {
			s.log.Info().Str("file_name", part.FileName()).Msg("empty-part file skipped")
			if p, ok := written[name]; ok {
				_ = os.Remove(p)
				delete(written, name)
			}
			continue
		}
		filesReceived++
	}

	if s.cfg.PreserveTimestamps {
		for name, path := range written {
			if t, ok := timestamps[name]; ok {
				_ = os.Chtimes(path, t, t)
			}
		}
	}

	if err := rec.Transition(transfer.StateCompleted, nil); err != nil {
		s.log.Debug().Err(err).Msg("upload completed after record already left Transferring")
	}

	s.log.Info().Str("transfer_id", rec.ID).Int("files_received", filesReceived).Msg("/Upload completed")
	writeJSON(w, http.StatusOK, wire.UploadResponse{
		Success:       true,
		FilesReceived: filesReceived,
		Message:       "ok",
	})
}

// writeFilePart streams one file part to a collision-safe path under the
// save directory in cfg.chunkSize() chunks, honoring the record's
// cancellation token.
func (s *Server) writeFilePart(rec *transfer.Record, part *multipart.Part, formName, saveDir string, written map[string]string) (int64, error) {
	name := sanitizeFilename(part.FileName())
	if name == "" {
		name = sanitizeFilename(formName)
	}
	name, err := resolveCollision(saveDir, name)
	if err != nil {
		return 0, err
	}
	dest := filepath.Join(saveDir, name)

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("server: create %s: %w", dest, err)
	}
	written[formName] = dest
	defer f.Close()

	buf := make([]byte, s.cfg.chunkSize())
	var total int64
	var sniffed bool
	for {
		select {
		case <-rec.Cancel.Done():
			return total, ErrUploadCancelled
		default:
		}

		n, readErr := part.Read(buf)
		if n > 0 {
			if !sniffed && total == 0 {
				s.log.Debug().Str("mime", mimetype.Detect(buf[:n]).String()).Str("file_name", name).Msg("sniffed upload content type")
				sniffed = true
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("server: write %s: %w", dest, werr)
			}
			total += int64(n)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return total, nil
			}
			return total, fmt.Errorf("server: read part %s: %w", name, readErr)
		}
	}
}

// failUpload aborts the whole request with HTTP 500 and transitions rec to
// Cancelled when cause is ErrUploadCancelled, to Failed otherwise. It does
// not touch the disk; callers remove partial files with cleanup first.
func (s *Server) failUpload(w http.ResponseWriter, rec *transfer.Record, cause error) {
	s.log.Error().Err(cause).Str("transfer_id", rec.ID).Msg("/Upload failed")
	if errors.Is(cause, ErrUploadCancelled) {
		_ = rec.CancelTransfer()
	} else {
		_ = rec.Transition(transfer.StateFailed, cause)
	}
	writeJSON(w, http.StatusInternalServerError, wire.UploadResponse{
		Success: false,
		Message: cause.Error(),
	})
}

func (s *Server) cleanup(written map[string]string) {
	for _, path := range written {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", path).Msg("failed to remove partial upload")
		}
	}
}
