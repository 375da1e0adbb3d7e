package mapper

import "errors"

// Domain-specific errors for the converter.
var (
	// ErrClientRequired is returned when no bus client is configured.
	ErrClientRequired = errors.New("mapper: bus client is required")

	// ErrCollaboratorRequired is returned when a mandatory collaborator is missing.
	ErrCollaboratorRequired = errors.New("mapper: collaborator is required")

	// ErrInvalidMetadata is returned for a metadata body that is not a JSON object.
	ErrInvalidMetadata = errors.New("mapper: invalid capability metadata")
)
