package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "c8y/s/us")
//   - payload: The message payload (max 1MB; empty clears a retained topic)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return await(c.client.Publish(topic, qos, retained, payload), defaultPublishTimeout, ErrPublishFailed)
}

// PublishMessage publishes a Message with its own QoS and retain flag.
func (c *Client) PublishMessage(msg Message) error {
	return c.Publish(msg.Topic, msg.Payload, msg.QoS, msg.Retain)
}

// PublishMessages publishes msgs in order, stopping at the first failure.
func (c *Client) PublishMessages(msgs []Message) error {
	for _, msg := range msgs {
		if err := c.PublishMessage(msg); err != nil {
			return fmt.Errorf("publishing to %s: %w", msg.Topic, err)
		}
	}
	return nil
}
