package mqtt

import (
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
// Camera frames are the largest payloads the greenhouse produces.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends payload to topic and blocks until the broker acknowledges
// it (QoS 1 and 2) or the publish timeout elapses.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "estufa/irrigacao/manual")
//   - payload: The message payload (typically JSON)
//   - qos: Quality of Service level (0, 1, or 2)
//
// Returns:
//   - ErrInvalidTopic, ErrInvalidQoS or ErrPayloadTooLarge for bad input
//   - ErrNotConnected when the link is down
//   - ErrPublishTimeout when no acknowledgement arrives in time
//   - ErrPublishFailed for any other broker or link failure
//
// Example:
//
//	err := client.Publish("estufa/irrigacao/manual", []byte(`{"sessao_id":7,"comando":"ligar"}`), 2)
func (c *Client) Publish(topic string, payload []byte, qos byte) error {
	if err := ValidateTopic(topic, false); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, false, payload)

	timer := time.NewTimer(c.publishTimeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return fmt.Errorf("%w: after %v", ErrPublishTimeout, c.publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
