package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads at 1MB. Screenshots travel over
// the relay's HTTP leg, not the bus, so nothing legitimate comes close.
const maxPayloadSize = 1 << 20

// Publish sends one message and waits for the broker acknowledgment.
//
// Retained is for state topics a late subscriber must see immediately
// (provisioning responses, relay and bridge status); commands and
// events are never retained.
//
//	topic := mqtt.Topics{}.DeviceCommand("pi-7", "reboot")
//	err := client.Publish(topic, []byte(`{}`), 1, false)
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

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(tokenTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, tokenTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
