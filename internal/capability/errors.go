package capability

import "errors"

// Domain errors for the capability package.
var (
	// ErrMarker is returned when a marker file or directory cannot be written or listed.
	ErrMarker = errors.New("capability: operation marker")

	// ErrNoValueList is returned for operations that carry no value list.
	ErrNoValueList = errors.New("capability: operation has no value list")

	// ErrInvalidOperation is returned for operation names unusable as file names.
	ErrInvalidOperation = errors.New("capability: invalid operation name")
)
