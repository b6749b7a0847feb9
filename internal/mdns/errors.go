package mdns

import "errors"

var (
	// ErrResponderUnavailable is returned when the local network stack
	// cannot bind the mDNS responder (e.g. no usable multicast interface).
	ErrResponderUnavailable = errors.New("mdns: responder unavailable")

	// ErrInvalidInstanceName names an unpublishable service instance name.
	// No function in this package returns it: SanitizeInstanceName falls
	// back to "Windows-Device" when nothing of the display name survives.
	ErrInvalidInstanceName = errors.New("mdns: invalid instance name")
)
