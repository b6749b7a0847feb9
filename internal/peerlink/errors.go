package peerlink

import (
	"errors"

	"airdrop/internal/errkind"
)

// ErrNoTransport is returned when every provider either declared itself
// unavailable or failed to connect.
var ErrNoTransport = errkind.New(errkind.TransportFailure, errors.New("peerlink: no transport available"))

// ErrPeerNotFound is returned by the Wi-Fi Direct provider when the target
// peer cannot be matched against OS-enumerated WFD devices.
var ErrPeerNotFound = errors.New("peerlink: peer not found among WFD devices")

// ErrUnknownConnection is returned by Close when the connection_id is not
// (or is no longer) registered in the pool.
var ErrUnknownConnection = errors.New("peerlink: unknown connection id")
