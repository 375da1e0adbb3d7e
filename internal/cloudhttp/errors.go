package cloudhttp

import "errors"

// Domain errors for the cloudhttp package.
var (
	// ErrUnexpectedStatus is returned when the proxy answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("cloudhttp: unexpected HTTP status")

	// ErrUnknownDevice is returned when an external id has no managed object.
	ErrUnknownDevice = errors.New("cloudhttp: unknown device")

	// ErrInvalidResponse is returned when a response body cannot be decoded.
	ErrInvalidResponse = errors.New("cloudhttp: invalid response")
)
