package client

import (
	"context"
	"errors"

	"airdrop/internal/airdrop/wire"
	"airdrop/internal/registry"
	"airdrop/internal/transfer"
)

// Send orchestrates the full send path against one peer: dial, /Discover,
// /Ask, /Upload, driving rec's state machine at each step. Send always
// leaves rec in a terminal state before returning, and always closes the
// underlying link.
func (c *Client) Send(ctx context.Context, peer registry.PeerRecord, rec *transfer.Record, onProgress func(transfer.Progress)) error {
	if err := rec.Transition(transfer.StateConnecting, nil); err != nil {
		return err
	}

	if err := c.Dial(ctx, peer); err != nil {
		_ = rec.Transition(transfer.StateFailed, err)
		return err
	}
	defer c.Close()

	dreq := wire.DiscoverRequest{
		SenderComputerName: c.cfg.LocalComputerName,
		SenderModelName:    c.cfg.LocalModelName,
		SenderID:           c.cfg.LocalSenderID,
	}
	if _, err := c.Discover(ctx, dreq); err != nil {
		_ = rec.Transition(transfer.StateFailed, err)
		return err
	}

	areq := wire.AskRequest{
		SenderComputerName: c.cfg.LocalComputerName,
		SenderID:           c.cfg.LocalSenderID,
		Files:              askFiles(rec.Files),
	}
	if _, err := c.Ask(ctx, areq); err != nil {
		switch {
		case errors.Is(err, ErrRejected):
			_ = rec.Transition(transfer.StateRejected, err)
		default:
			_ = rec.Transition(transfer.StateFailed, err)
		}
		return err
	}

	if err := rec.Transition(transfer.StateTransferring, nil); err != nil {
		return err
	}

	if _, err := c.Upload(ctx, rec.Files, rec.Cancel, onProgress); err != nil {
		if errors.Is(err, ErrCancelled) || rec.Cancel.Cancelled() {
			_ = rec.CancelTransfer()
		} else {
			_ = rec.Transition(transfer.StateFailed, err)
		}
		return err
	}

	return rec.Transition(transfer.StateCompleted, nil)
}

func askFiles(files []transfer.FileDescriptor) []wire.AskFile {
	out := make([]wire.AskFile, len(files))
	for i, f := range files {
		out[i] = wire.AskFile{
			FileName:        f.Name,
			FileSize:        f.Size,
			FileType:        f.MimeType,
			FileIsDirectory: f.IsDirectory,
		}
	}
	return out
}
