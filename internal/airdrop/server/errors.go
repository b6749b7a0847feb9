package server

import "errors"

var (
	// ErrUploadWithoutAsk is the 409 condition: an /Upload with no preceding
	// approved /Ask from the same peer certificate thumbprint.
	ErrUploadWithoutAsk = errors.New("server: upload without a preceding approved ask")

	// ErrApprovalRejected is the 403 condition.
	ErrApprovalRejected = errors.New("server: approval rejected")

	// ErrApprovalTimedOut is the 408 condition.
	ErrApprovalTimedOut = errors.New("server: approval timed out")

	// ErrUploadCancelled signals a cancellation observed mid-stream while
	// writing a file part.
	ErrUploadCancelled = errors.New("server: upload cancelled")
)
