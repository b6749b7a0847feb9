package client

import (
	"errors"

	"airdrop/internal/errkind"
)

var (
	// ErrPeerUnreachable is returned when /Discover does not answer 2xx.
	ErrPeerUnreachable = errkind.New(errkind.TransportFailure, errors.New("client: peer unreachable"))

	// ErrApprovalTimeout is returned when /Ask answers 408.
	ErrApprovalTimeout = errkind.New(errkind.ApprovalTimeout, errors.New("client: approval timed out"))

	// ErrRejected is returned when /Ask answers 403. Not a failure per
	// this package; callers should move the record to Rejected, not Failed.
	ErrRejected = errkind.New(errkind.PeerRejected, errors.New("client: peer rejected the request"))

	// ErrUploadFailed is returned when /Upload answers anything but 2xx.
	ErrUploadFailed = errkind.New(errkind.IoError, errors.New("client: upload failed"))

	// ErrNotConnected is the cause when Upload/Ask/Discover is called before
	// Dial. Those methods report it inside ErrPeerUnreachable or
	// ErrUploadFailed as message text, not as a wrapped error.
	ErrNotConnected = errors.New("client: not connected")

	// ErrCancelled is returned by Upload when the transfer's cancel token
	// fires mid-stream.
	ErrCancelled = errkind.New(errkind.Cancelled, errors.New("client: transfer cancelled"))
)
