package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"airdrop/internal/airdrop/wire"
	"airdrop/internal/transfer"
)

// Upload streams files as multipart/form-data to /Upload, reporting
// aggregate progress to onProgress at most every 100 ms.
// cancel is checked before each file and each buffer-sized chunk; once it
// has fired, the request body fails with ErrCancelled, aborting the
// stream, and the server observes the resulting stream reset and cleans up.
func (c *Client) Upload(ctx context.Context, files []transfer.FileDescriptor, cancel *transfer.CancelToken, onProgress func(transfer.Progress)) (wire.UploadResponse, error) {
	ctx, stop := context.WithTimeout(ctx, c.cfg.transferTimeout())
	defer stop()

	var total int64
	for _, f := range files {
		total += f.Size
	}
	tracker := transfer.NewProgressTracker(total)

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := c.writeMultipartFiles(mw, files, tracker, cancel, onProgress)
		closeErr := mw.Close()
		if err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequest(http.MethodPost, "https://"+clientAuthority+"/Upload", pr)
	if err != nil {
		return wire.UploadResponse{}, fmt.Errorf("client: build /Upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return wire.UploadResponse{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	if onProgress != nil {
		tracker.Flush(onProgress)
	}
	return parseUploadResponse(resp)
}

func (c *Client) writeMultipartFiles(mw *multipart.Writer, files []transfer.FileDescriptor, tracker *transfer.ProgressTracker, cancel *transfer.CancelToken, onProgress func(transfer.Progress)) error {
	for i, f := range files {
		select {
		case <-cancel.Done():
			return ErrCancelled
		default:
		}

		partName := fmt.Sprintf("file%d", i)
		fw, err := mw.CreateFormFile(partName, f.Name)
		if err != nil {
			return fmt.Errorf("client: create form file %s: %w", f.Name, err)
		}

		src, err := os.Open(f.SourcePath())
		if err != nil {
			return fmt.Errorf("client: open %s: %w", f.Name, err)
		}

		if err := copyWithProgress(fw, src, c.cfg.bufferSize(), tracker, cancel, onProgress); err != nil {
			src.Close()
			return err
		}
		src.Close()

		if !f.ModTime.IsZero() {
			tw, err := mw.CreateFormField(partName + "_timestamp")
			if err != nil {
				return fmt.Errorf("client: create timestamp field for %s: %w", f.Name, err)
			}
			if _, err := io.WriteString(tw, f.ModTime.UTC().Format(time.RFC3339)); err != nil {
				return fmt.Errorf("client: write timestamp for %s: %w", f.Name, err)
			}
		}
	}
	return nil
}

func copyWithProgress(dst io.Writer, src io.Reader, bufSize int, tracker *transfer.ProgressTracker, cancel *transfer.CancelToken, onProgress func(transfer.Progress)) error {
	buf := make([]byte, bufSize)
	for {
		select {
		case <-cancel.Done():
			return ErrCancelled
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("client: write upload body: %w", werr)
			}
			if onProgress != nil {
				tracker.Add(int64(n), onProgress)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return fmt.Errorf("client: read upload source: %w", readErr)
		}
	}
}
