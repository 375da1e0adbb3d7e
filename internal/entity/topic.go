package entity

import (
	"fmt"
	"strings"
)

const topicIDSegments = 4

// MainDevice is the topic identifier of the gateway itself.
const MainDevice TopicID = "device/main//"

// TopicID is the four-segment local identifier of an entity.
type TopicID string

// ParseTopicID validates s as a topic identifier.
func ParseTopicID(s string) (TopicID, error) {
	if strings.Count(s, "/") != topicIDSegments-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopicID, s)
	}
	return TopicID(s), nil
}

// DefaultDevice returns the topic identifier of the device named name.
func DefaultDevice(name string) TopicID {
	return TopicID("device/" + name + "//")
}

// DefaultService returns the topic identifier of a service on the device named device.
func DefaultService(device, service string) TopicID {
	return TopicID("device/" + device + "/service/" + service)
}

func (t TopicID) String() string {
	return string(t)
}

func (t TopicID) segments() []string {
	return strings.Split(string(t), "/")
}

// IsMainDevice reports whether t identifies the gateway itself.
func (t TopicID) IsMainDevice() bool {
	return t == MainDevice
}

// DeviceName returns the device name of a default-scheme device id
// ("device/<name>//").
func (t TopicID) DeviceName() (string, bool) {
	s := t.segments()
	if len(s) != topicIDSegments || s[0] != "device" || s[1] == "" || s[2] != "" || s[3] != "" {
		return "", false
	}
	return s[1], true
}

// ServiceName returns the parent device id and service name of a
// default-scheme service id ("device/<name>/service/<service>").
func (t TopicID) ServiceName() (TopicID, string, bool) {
	s := t.segments()
	if len(s) != topicIDSegments || s[0] != "device" || s[1] == "" || s[2] != "service" || s[3] == "" {
		return "", "", false
	}
	return DefaultDevice(s[1]), s[3], true
}

// Channel is a parsed command or command metadata topic.
type Channel struct {
	Entity    TopicID
	Operation string

	// CmdID is empty for capability metadata topics.
	CmdID string
}

// IsMetadata reports whether the channel is a capability metadata topic.
func (c Channel) IsMetadata() bool {
	return c.CmdID == ""
}

// ParseCommandTopic splits a local topic of the form
// <prefix>/<a>/<b>/<c>/<d>/cmd/<operation>[/<cmd_id>].
func ParseCommandTopic(prefix, topic string) (Channel, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return Channel{}, fmt.Errorf("%w: %s", ErrNotCommandTopic, topic)
	}

	parts := strings.Split(rest, "/")
	// 4 id segments + "cmd" + operation [+ cmd id]
	if len(parts) < topicIDSegments+2 || len(parts) > topicIDSegments+3 || parts[topicIDSegments] != "cmd" {
		return Channel{}, fmt.Errorf("%w: %s", ErrNotCommandTopic, topic)
	}

	ch := Channel{
		Entity:    TopicID(strings.Join(parts[:topicIDSegments], "/")),
		Operation: parts[topicIDSegments+1],
	}
	if ch.Operation == "" {
		return Channel{}, fmt.Errorf("%w: empty operation in %s", ErrNotCommandTopic, topic)
	}
	if len(parts) == topicIDSegments+3 {
		ch.CmdID = parts[topicIDSegments+2]
		if ch.CmdID == "" {
			return Channel{}, fmt.Errorf("%w: empty command id in %s", ErrNotCommandTopic, topic)
		}
	}
	return ch, nil
}
