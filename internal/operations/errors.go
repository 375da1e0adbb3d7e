package operations

import "errors"

// Domain errors for the operations package.
var (
	// ErrMissingField is returned when a command state lacks a field its routine needs.
	ErrMissingField = errors.New("operations: command is missing a field")

	// ErrPanic is returned for a routine that panicked.
	ErrPanic = errors.New("operations: routine panicked")
)
