package mqtt

import "fmt"

// Topic prefixes for the infoscreen fleet.
//
// Standard devices (Raspberry Pi kiosks) report under devices/... and
// receive commands on their per-device cmd topic. Fully Kiosk tablets
// broadcast under fully/... and are driven through the relay process.
// Provisioning uses its own namespace keyed by customer code.
const (
	// TopicPrefixDevices is the base for standard device topics.
	TopicPrefixDevices = "devices"

	// TopicPrefixPending is the base for unapproved device topics.
	TopicPrefixPending = "devices/pending"

	// TopicPrefixFully is the base for Fully Kiosk topics.
	TopicPrefixFully = "fully"

	// TopicPrefixProvision is the base for provisioning handshake topics.
	TopicPrefixProvision = "provision"
)

// Topics provides builders for infoscreen MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.DeviceStatus("pi-7")
//	// Returns: "devices/pi-7/status"
type Topics struct{}

// =============================================================================
// Standard Device Topics
// =============================================================================

// DeviceStatus returns the status report topic for an approved device.
//
// Example: devices/pi-7/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevices, deviceID)
}

// PendingStatus returns the status report topic for an unapproved device.
//
// Example: devices/pending/pi-7/status
func (Topics) PendingStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixPending, deviceID)
}

// DeviceTelemetry returns the periodic health sample topic for a device.
//
// Example: devices/pi-7/telemetry
func (Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/%s/telemetry", TopicPrefixDevices, deviceID)
}

// DeviceEvent returns the topic for a typed discrete event from a device.
// Known kinds: events, wifi-scan, screenshot, geolocation.
//
// Example: devices/pi-7/wifi-scan
func (Topics) DeviceEvent(deviceID, kind string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixDevices, deviceID, kind)
}

// DeviceCommand returns the command topic for an approved device.
//
// Example: devices/pi-7/cmd/reboot
func (Topics) DeviceCommand(deviceID, action string) string {
	return fmt.Sprintf("%s/%s/cmd/%s", TopicPrefixDevices, deviceID, action)
}

// PendingApprove returns the approval command topic for a pending device.
//
// Example: devices/pending/pi-7/cmd/approve
func (Topics) PendingApprove(deviceID string) string {
	return fmt.Sprintf("%s/%s/cmd/approve", TopicPrefixPending, deviceID)
}

// =============================================================================
// Fully Kiosk Topics
// =============================================================================

// FullyDeviceInfo returns the discovery broadcast topic for a Fully device.
//
// Example: fully/deviceInfo/abc123
func (Topics) FullyDeviceInfo(deviceID string) string {
	return fmt.Sprintf("%s/deviceInfo/%s", TopicPrefixFully, deviceID)
}

// FullyEvent returns the discrete event topic for a Fully device.
//
// Example: fully/event/screenOn/abc123
func (Topics) FullyEvent(eventType, deviceID string) string {
	return fmt.Sprintf("%s/event/%s/%s", TopicPrefixFully, eventType, deviceID)
}

// FullyCommand returns the relay command dispatch topic.
// The device id carries no family prefix on the wire.
//
// Example: fully/cmd/abc123/loadUrl
func (Topics) FullyCommand(deviceID, action string) string {
	return fmt.Sprintf("%s/cmd/%s/%s", TopicPrefixFully, deviceID, action)
}

// FullyCommandAck returns the command result topic published by the relay.
//
// Example: fully/cmd/abc123/loadUrl/ack
func (Topics) FullyCommandAck(deviceID, action string) string {
	return fmt.Sprintf("%s/cmd/%s/%s/ack", TopicPrefixFully, deviceID, action)
}

// FullyRelayStatus returns the relay liveness topic (retained).
//
// Example: fully/relay/status
func (Topics) FullyRelayStatus() string {
	return fmt.Sprintf("%s/relay/status", TopicPrefixFully)
}

// BridgeStatus returns the bridge liveness topic (retained).
//
// Example: bridge/status
func (Topics) BridgeStatus() string {
	return "bridge/status"
}

// =============================================================================
// Provisioning Topics
// =============================================================================

// ProvisionRequest returns the bootstrap request topic for a customer code.
//
// Example: provision/4711/request
func (Topics) ProvisionRequest(code string) string {
	return fmt.Sprintf("%s/%s/request", TopicPrefixProvision, code)
}

// ProvisionResponse returns the bootstrap answer topic (published retained).
//
// Example: provision/4711/response/pi-7
func (Topics) ProvisionResponse(code, deviceID string) string {
	return fmt.Sprintf("%s/%s/response/%s", TopicPrefixProvision, code, deviceID)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceTopics returns a pattern matching all standard device traffic,
// including the pending namespace.
//
// Pattern: devices/#
func (Topics) AllDeviceTopics() string {
	return TopicPrefixDevices + "/#"
}

// AllFullyTopics returns a pattern matching all Fully Kiosk traffic.
//
// Pattern: fully/#
func (Topics) AllFullyTopics() string {
	return TopicPrefixFully + "/#"
}

// AllProvisionRequests returns a pattern matching all bootstrap requests.
// Responses are deliberately excluded so the bridge never consumes its
// own retained answers.
//
// Pattern: provision/+/request
func (Topics) AllProvisionRequests() string {
	return fmt.Sprintf("%s/+/request", TopicPrefixProvision)
}

// AllFullyDeviceInfo returns a pattern matching all discovery broadcasts.
//
// Pattern: fully/deviceInfo/+
func (Topics) AllFullyDeviceInfo() string {
	return fmt.Sprintf("%s/deviceInfo/+", TopicPrefixFully)
}

// AllFullyCommands returns a pattern matching command dispatches only.
// Acknowledgements have an extra level and do not match.
//
// Pattern: fully/cmd/+/+
func (Topics) AllFullyCommands() string {
	return fmt.Sprintf("%s/cmd/+/+", TopicPrefixFully)
}

// AllFullyCommandAcks returns a pattern matching all command results.
//
// Pattern: fully/cmd/+/+/ack
func (Topics) AllFullyCommandAcks() string {
	return fmt.Sprintf("%s/cmd/+/+/ack", TopicPrefixFully)
}
