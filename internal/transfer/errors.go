package transfer

import "errors"

// Domain errors for the transfer package.
var (
	// ErrUnexpectedStatus is returned when a transfer endpoint answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("transfer: unexpected HTTP status")

	// ErrNoSource is returned when an upload names neither a body nor a source URL.
	ErrNoSource = errors.New("transfer: upload has no source")

	// ErrInvalidRequest is returned for requests missing a URL or path.
	ErrInvalidRequest = errors.New("transfer: invalid request")
)
