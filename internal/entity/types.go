package entity

import (
	"fmt"
	"time"
)

// Type is the kind of a registered entity.
type Type string

// Entity types.
const (
	TypeMainDevice  Type = "main-device"
	TypeChildDevice Type = "child-device"
	TypeService     Type = "service"
)

// Entity is a registered device or service.
type Entity struct {
	TopicID    TopicID
	ExternalID string
	Type       Type

	// Parent is empty for the main device.
	Parent TopicID

	DisplayName  string
	RegisteredAt time.Time
}

// Validate checks the fields required for persistence.
func (e Entity) Validate() error {
	if e.TopicID == "" {
		return fmt.Errorf("%w: topic id is required", ErrInvalidEntity)
	}
	if _, err := ParseTopicID(string(e.TopicID)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}
	if e.ExternalID == "" {
		return fmt.Errorf("%w: external id is required", ErrInvalidEntity)
	}
	switch e.Type {
	case TypeMainDevice:
	case TypeChildDevice, TypeService:
		if e.Parent == "" {
			return fmt.Errorf("%w: %s %s needs a parent", ErrInvalidEntity, e.Type, e.TopicID)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEntity, e.Type)
	}
	return nil
}

// Snapshot is the immutable view of an entity an operation routine works on.
//
// It holds no reference to the Registry; copy it freely.
type Snapshot struct {
	TopicID    TopicID
	ExternalID string

	// PublishTopic is where the entity's cloud status records go.
	PublishTopic string
}

// IsMainDevice reports whether the snapshot targets the gateway itself.
func (s Snapshot) IsMainDevice() bool {
	return s.TopicID.IsMainDevice()
}
