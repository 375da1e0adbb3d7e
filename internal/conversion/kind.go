package conversion

import (
	"errors"
	"fmt"
)

// Kind classifies a conversion-domain error.
type Kind string

// Conversion error kinds. The set is closed; every kind has a constructor.
const (
	KindPayload                  Kind = "payload"
	KindSizeThreshold            Kind = "size_threshold"
	KindSerialization            Kind = "serialization"
	KindTransfer                 Kind = "transfer"
	KindHTTPProxy                Kind = "http_proxy"
	KindEntityStore              Kind = "entity_store"
	KindRegistration             Kind = "registration"
	KindChildNotRegistered       Kind = "child_not_registered"
	KindAutoRegistrationDisabled Kind = "auto_registration_disabled"
	KindElapsed                  Kind = "elapsed"
	KindInfrastructure           Kind = "infrastructure"
	KindIO                       Kind = "io"
	KindUnexpected               Kind = "unexpected"
)

// Error is a conversion-domain error. Its message is the wrapped error's
// message, unchanged.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a conversion Error of the same kind, so
// errors.Is(err, &conversion.Error{Kind: conversion.KindTransfer}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the kind of the outermost conversion Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var convErr *Error
	if errors.As(err, &convErr) {
		return convErr.Kind, true
	}
	return "", false
}

func newError(kind Kind, err error) *Error {
	if err == nil {
		err = ErrUnexpected
	}
	return &Error{Kind: kind, Err: err}
}

// FromPayload wraps a payload format violation.
func FromPayload(err error) *Error { return newError(KindPayload, err) }

// FromSerialization wraps a JSON or record encoding failure.
func FromSerialization(err error) *Error { return newError(KindSerialization, err) }

// FromTransfer wraps an upload or download failure.
func FromTransfer(err error) *Error { return newError(KindTransfer, err) }

// FromHTTPProxy wraps a cloud REST call failure.
func FromHTTPProxy(err error) *Error { return newError(KindHTTPProxy, err) }

// FromEntityStore wraps an entity registry failure.
func FromEntityStore(err error) *Error { return newError(KindEntityStore, err) }

// FromRegistration wraps a capability registration failure.
func FromRegistration(err error) *Error { return newError(KindRegistration, err) }

// FromIO wraps a file access failure met during conversion.
func FromIO(err error) *Error { return newError(KindIO, err) }

// FromInfrastructure lifts a low-level InfraError into the conversion layer.
func FromInfrastructure(err *InfraError) *Error {
	if err == nil {
		return newError(KindInfrastructure, nil)
	}
	return newError(KindInfrastructure, err)
}

// FromUnexpected wraps anything that fits no other kind.
func FromUnexpected(err error) *Error { return newError(KindUnexpected, err) }

// SizeExceeded reports a translated payload larger than the threshold.
func SizeExceeded(topic string, actual, threshold int) *Error {
	return newError(KindSizeThreshold, fmt.Errorf(
		"%w: the payload received on %s after translation is %d greater than the threshold size of %d",
		ErrSizeExceeded, topic, actual, threshold,
	))
}

// ChildNotRegistered reports an operation for an unknown child device.
func ChildNotRegistered(id string) *Error {
	return newError(KindChildNotRegistered, fmt.Errorf(
		"%w: the given child id '%s' is not registered with the cloud; register it first",
		ErrChildNotRegistered, id,
	))
}

// AutoRegistrationDisabled reports an unknown entity that cannot be
// registered on first sight.
func AutoRegistrationDisabled(entity string) *Error {
	return newError(KindAutoRegistrationDisabled, fmt.Errorf(
		"%w: the provided entity %s was not found and could not be auto-registered",
		ErrAutoRegistrationDisabled, entity,
	))
}

// Elapsed reports a routine that ran past its deadline.
func Elapsed(cause error) *Error {
	if cause == nil {
		return newError(KindElapsed, ErrElapsed)
	}
	return newError(KindElapsed, fmt.Errorf("%w: %w", ErrElapsed, cause))
}
