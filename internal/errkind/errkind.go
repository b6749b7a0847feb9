// Package errkind classifies the sentinel errors raised across the core
// into the recovery policy table from the error-handling design: each Kind
// maps to log-and-continue, surface-to-user, or fatal-restart-required.
package errkind

import "errors"

// Kind identifies one row of the error-handling design's policy table.
type Kind int

const (
	Unknown Kind = iota
	RadioUnavailable
	TransportFailure
	TlsHandshakeFailure
	ProtocolViolation
	PeerRejected
	ApprovalTimeout
	IoError
	Cancelled
	StoreUnavailable
	CryptoError
)

// Policy is the recovery action attached to a Kind.
type Policy int

const (
	LogAndContinue Policy = iota
	SurfaceToUser
	FatalRestartRequired
)

func (k Kind) String() string {
	switch k {
	case RadioUnavailable:
		return "RadioUnavailable"
	case TransportFailure:
		return "TransportFailure"
	case TlsHandshakeFailure:
		return "TlsHandshakeFailure"
	case ProtocolViolation:
		return "ProtocolViolation"
	case PeerRejected:
		return "PeerRejected"
	case ApprovalTimeout:
		return "ApprovalTimeout"
	case IoError:
		return "IoError"
	case Cancelled:
		return "Cancelled"
	case StoreUnavailable:
		return "StoreUnavailable"
	case CryptoError:
		return "CryptoError"
	default:
		return "Unknown"
	}
}

// Policy returns the recovery policy for k per the error-handling design
// table.
func (k Kind) Policy() Policy {
	switch k {
	case RadioUnavailable:
		return LogAndContinue
	case StoreUnavailable, CryptoError:
		return FatalRestartRequired
	default:
		return SurfaceToUser
	}
}

// classified lets a package attach a Kind to one of its sentinel errors
// without exporting a concrete error type; wrap with fmt.Errorf("...: %w")
// as usual and Of will still find the sentinel via errors.Is.
type classified struct {
	error
	kind Kind
}

// New wraps err so that Of(wrapped) reports kind. The returned error still
// satisfies errors.Is/errors.As against err.
func New(kind Kind, err error) error {
	return &classified{error: err, kind: kind}
}

func (c *classified) Unwrap() error { return c.error }

// Of walks err's wrap chain and returns the first attached Kind, or Unknown
// if none of the chain was produced by New.
func Of(err error) Kind {
	var c *classified
	if errors.As(err, &c) {
		return c.kind
	}
	return Unknown
}
