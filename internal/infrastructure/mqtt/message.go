package mqtt

// Default QoS for messages produced by the mapper.
const defaultMessageQoS byte = 1

// Message is an outbound or inbound bus message.
//
// Messages are plain values; operation routines build them and the
// caller decides when to publish.
type Message struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// NewMessage creates a non-retained QoS 1 message.
func NewMessage(topic string, payload []byte) Message {
	return Message{
		Topic:   topic,
		Payload: payload,
		QoS:     defaultMessageQoS,
	}
}

// NewStringMessage creates a non-retained QoS 1 message from a string payload.
func NewStringMessage(topic, payload string) Message {
	return NewMessage(topic, []byte(payload))
}

// WithRetain returns a copy of m with the retain flag set.
func (m Message) WithRetain() Message {
	m.Retain = true
	return m
}

// WithQoS returns a copy of m with the given QoS.
func (m Message) WithQoS(qos byte) Message {
	m.QoS = qos
	return m
}

// PayloadString returns the payload as a string.
func (m Message) PayloadString() string {
	return string(m.Payload)
}

// IsClear reports whether m clears a retained topic (empty retained payload).
func (m Message) IsClear() bool {
	return m.Retain && len(m.Payload) == 0
}
