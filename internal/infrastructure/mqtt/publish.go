package mqtt

import (
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic using the default
// publish deadline.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "treatment/command/PUMP-A-017")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Retained Messages:
//   - Use for state topics (device status, system status)
//   - Don't use for commands
//
// Returns nil on success, or a wrapped error describing the failure.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return c.PublishWithDeadline(topic, payload, qos, retained, defaultPublishTimeout)
}

// PublishWithDeadline sends a message and waits at most timeout for broker
// acknowledgment. The coordination dispatcher uses this so a single hung
// device publish cannot stall the rest of a fan-out indefinitely.
func (c *Client) PublishWithDeadline(topic string, payload []byte, qos byte, retained bool, timeout time.Duration) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishRetained publishes a retained message with the configured default QoS.
//
// Use for state updates where new subscribers should receive the current state.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
