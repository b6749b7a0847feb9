package ble

import (
	"errors"

	"airdrop/internal/errkind"
)

// ErrRadioUnavailable indicates the local Bluetooth adapter could not be
// enabled. Per the error-handling design this is log-and-continue: the
// beacon disables cleanly and does not retry.
var ErrRadioUnavailable = errkind.New(errkind.RadioUnavailable, errors.New("ble: radio unavailable"))
