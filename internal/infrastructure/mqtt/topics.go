package mqtt

import (
	"fmt"
	"strings"
)

// Default topic roots.
const (
	// DefaultLocalPrefix is the root of the local device bus scheme.
	DefaultLocalPrefix = "te"

	// DefaultCloudPrefix is the root of topics bridged to the cloud.
	DefaultCloudPrefix = "c8y"

	// mapperServiceName identifies this process in service health topics.
	mapperServiceName = "graymapper"
)

// Topics provides builders for local bus and cloud bridge topics.
//
// Local topics follow <local>/<entity topic id>/<channel>/..., where the
// entity topic id always has four segments, e.g. "device/main//" or
// "device/child1//". Cloud status records go to <cloud>/s/us for the main
// device and <cloud>/s/us/<external-id> for a child device.
//
//	topics := mqtt.NewTopics("te", "c8y")
//	topics.Command("device/main//", "restart", "c8y-mapper-1")
//	// Returns: "te/device/main///cmd/restart/c8y-mapper-1"
type Topics struct {
	Local string
	Cloud string
}

// NewTopics returns a Topics builder, substituting defaults for empty roots.
func NewTopics(local, cloud string) Topics {
	if local == "" {
		local = DefaultLocalPrefix
	}
	if cloud == "" {
		cloud = DefaultCloudPrefix
	}
	return Topics{Local: local, Cloud: cloud}
}

// =============================================================================
// Local Command Topics
// =============================================================================

// Command returns the topic of one command instance.
//
// Example: te/device/main///cmd/restart/c8y-mapper-1
func (t Topics) Command(entity, op, cmdID string) string {
	return fmt.Sprintf("%s/%s/cmd/%s/%s", t.Local, entity, op, cmdID)
}

// CommandMetadata returns the capability metadata topic of an operation.
//
// Example: te/device/main///cmd/config_snapshot
func (t Topics) CommandMetadata(entity, op string) string {
	return fmt.Sprintf("%s/%s/cmd/%s", t.Local, entity, op)
}

// AllCommands returns a pattern matching every command instance.
//
// Pattern: te/+/+/+/+/cmd/+/+
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/+/+/+/+/cmd/+/+", t.Local)
}

// AllCommandMetadata returns a pattern matching every capability metadata topic.
//
// Pattern: te/+/+/+/+/cmd/+
func (t Topics) AllCommandMetadata() string {
	return fmt.Sprintf("%s/+/+/+/+/cmd/+", t.Local)
}

// MapperHealth returns the health topic of this mapper service.
//
// Example: te/device/main/service/graymapper/status/health
func (t Topics) MapperHealth() string {
	return fmt.Sprintf("%s/device/main/service/%s/status/health", t.Local, mapperServiceName)
}

// IsLocal reports whether topic belongs to the local scheme.
func (t Topics) IsLocal(topic string) bool {
	return strings.HasPrefix(topic, t.Local+"/")
}

// =============================================================================
// Cloud Topics
// =============================================================================

// CloudSmartREST returns the upstream record topic of the main device.
//
// Example: c8y/s/us
func (t Topics) CloudSmartREST() string {
	return fmt.Sprintf("%s/s/us", t.Cloud)
}

// CloudSmartRESTChild returns the upstream record topic of a child device.
//
// Example: c8y/s/us/gateway-0001:device:child1
func (t Topics) CloudSmartRESTChild(externalID string) string {
	return fmt.Sprintf("%s/s/us/%s", t.Cloud, externalID)
}
