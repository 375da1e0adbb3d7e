package conversion

import (
	"errors"
	"fmt"
)

// Source names the subsystem an infrastructure error came from.
type Source string

// Infrastructure error sources.
const (
	SourceBusClient Source = "bus client"
	SourceConfig    Source = "configuration"
	SourceWatch     Source = "filesystem watch"
	SourceIO        Source = "io"
)

// InfraError is a low-level failure that usually means the process cannot
// continue normally.
type InfraError struct {
	Source Source
	Err    error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *InfraError) Unwrap() error {
	return e.Err
}

// BusClientFailure wraps a message bus client error.
func BusClientFailure(err error) *InfraError { return &InfraError{Source: SourceBusClient, Err: err} }

// ConfigFailure wraps a configuration error.
func ConfigFailure(err error) *InfraError { return &InfraError{Source: SourceConfig, Err: err} }

// WatchFailure wraps a filesystem watcher error.
func WatchFailure(err error) *InfraError { return &InfraError{Source: SourceWatch, Err: err} }

// IOFailure wraps a raw I/O error.
func IOFailure(err error) *InfraError { return &InfraError{Source: SourceIO, Err: err} }

// IsInfrastructure reports whether err carries an infrastructure error and
// should escape per-message isolation.
func IsInfrastructure(err error) bool {
	var infra *InfraError
	return errors.As(err, &infra)
}
