package conversion

import "errors"

// Sentinel errors carried inside conversion errors.
var (
	// ErrElapsed is wrapped by the elapsed kind when an operation routine
	// runs past its deadline.
	ErrElapsed = errors.New("conversion: deadline has elapsed")

	// ErrSizeExceeded is wrapped by the size threshold kind.
	ErrSizeExceeded = errors.New("conversion: size threshold exceeded")

	// ErrChildNotRegistered is wrapped when a child device is unknown.
	ErrChildNotRegistered = errors.New("conversion: child device not registered")

	// ErrAutoRegistrationDisabled is wrapped when an unknown entity cannot
	// be registered on first sight.
	ErrAutoRegistrationDisabled = errors.New("conversion: auto-registration disabled")

	// ErrUnexpected is wrapped by the unexpected kind when no cause is given.
	ErrUnexpected = errors.New("conversion: unexpected error")
)
