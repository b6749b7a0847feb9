package identity

import (
	"errors"

	"airdrop/internal/errkind"
)

var (
	// ErrStoreUnavailable is returned when the platform key store cannot be
	// reached at all; per the error-handling design this is fatal at startup.
	ErrStoreUnavailable = errkind.New(errkind.StoreUnavailable, errors.New("identity: certificate store unavailable"))

	// ErrCryptoError wraps key-generation or signing failures; also fatal at
	// startup per the error-handling design.
	ErrCryptoError = errkind.New(errkind.CryptoError, errors.New("identity: cryptographic operation failed"))

	ErrNoActiveCertificate = errors.New("identity: no active certificate")
)
