package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"airdrop/internal/airdrop/wire"
)

const clientAuthority = "airdrop.local"

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("client: marshal %s body: %w", path, err)
	}
	req, err := http.NewRequest(http.MethodPost, "https://"+clientAuthority+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("client: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.roundTrip(ctx, req)
}

// Discover issues /Discover. A non-2xx response is classified
// ErrPeerUnreachable.
func (c *Client) Discover(ctx context.Context, req wire.DiscoverRequest) (wire.DiscoverResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.discoverTimeout())
	defer cancel()

	resp, err := c.postJSON(ctx, "/Discover", req)
	if err != nil {
		return wire.DiscoverResponse{}, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return wire.DiscoverResponse{}, fmt.Errorf("%w: status %d", ErrPeerUnreachable, resp.StatusCode)
	}

	var out wire.DiscoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wire.DiscoverResponse{}, fmt.Errorf("client: decode /Discover response: %w", err)
	}
	return out, nil
}

// Ask issues /Ask and waits for the answer bounded only by ctx; it applies
// no timeout of its own, relying on the server to answer 408 once its
// approval window lapses. 200 proceeds, 403 maps to ErrRejected, 408 to
// ErrApprovalTimeout.
func (c *Client) Ask(ctx context.Context, req wire.AskRequest) (wire.AskResponse, error) {
	resp, err := c.postJSON(ctx, "/Ask", req)
	if err != nil {
		return wire.AskResponse{}, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out wire.AskResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return wire.AskResponse{}, fmt.Errorf("client: decode /Ask response: %w", err)
		}
		return out, nil
	case http.StatusForbidden:
		return wire.AskResponse{}, ErrRejected
	case http.StatusRequestTimeout:
		return wire.AskResponse{}, ErrApprovalTimeout
	default:
		return wire.AskResponse{}, fmt.Errorf("%w: unexpected /Ask status %d", ErrPeerUnreachable, resp.StatusCode)
	}
}

// parseUploadResponse is split out so Upload (in upload.go) can share the
// status-code handling with a future retried-request path.
func parseUploadResponse(resp *http.Response) (wire.UploadResponse, error) {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return wire.UploadResponse{}, fmt.Errorf("%w: status %d: %s", ErrUploadFailed, resp.StatusCode, body)
	}
	var out wire.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wire.UploadResponse{}, fmt.Errorf("client: decode /Upload response: %w", err)
	}
	return out, nil
}
