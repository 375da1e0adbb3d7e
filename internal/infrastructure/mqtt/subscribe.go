package mqtt

import (
	"fmt"
)

// Subscribe registers handler for topic, which may hold + and # wildcards
// (e.g. Topics.AllCommands()).
//
// Paho calls the handler on its own goroutine for every message; a
// returned error is logged at warn level and a panic is recovered.
// The subscription is remembered and restored after every reconnect,
// because the client uses a clean session.
//
// Parameters:
//   - topic: Topic filter to subscribe to
//   - qos: Maximum QoS for delivered messages (0, 1, or 2)
//   - handler: Callback invoked for each message
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or
//     ErrSubscribeFailed wrapping the broker's answer
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	sub := subscription{topic: topic, qos: qos, handler: handler}
	c.subMu.Lock()
	c.subscriptions[topic] = sub
	c.subMu.Unlock()

	if err := await(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		c.subMu.Lock()
		delete(c.subscriptions, topic)
		c.subMu.Unlock()
		return err
	}
	return nil
}

// SubscriptionCount returns the number of remembered subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// restoreSubscriptions re-subscribes to every remembered topic. It runs in
// the connect handler, which must not block, so acknowledgements are
// awaited in the background and failures logged.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		go func(topic string) {
			if err := await(token, defaultPublishTimeout, ErrSubscribeFailed); err != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("cannot restore subscription", "topic", topic, "error", err)
				}
			}
		}(sub.topic)
	}
}
