package entity

import "errors"

// Domain errors for the entity package.
var (
	// ErrInvalidTopicID is returned when a topic identifier does not have four segments.
	ErrInvalidTopicID = errors.New("entity: invalid topic id")

	// ErrNotCommandTopic is returned when a topic is not a command or command metadata topic.
	ErrNotCommandTopic = errors.New("entity: not a command topic")

	// ErrEntityNotFound is returned when an entity is not registered.
	ErrEntityNotFound = errors.New("entity: not found")

	// ErrEntityExists is returned when registering an entity twice.
	ErrEntityExists = errors.New("entity: already exists")

	// ErrInvalidEntity is returned when an entity fails validation.
	ErrInvalidEntity = errors.New("entity: invalid")
)
