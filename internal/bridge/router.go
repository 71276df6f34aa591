package bridge

import (
	"encoding/json"
	"strings"

	"github.com/ufitech/infoscreen-bridge/internal/device"
)

// Kind classifies an inbound topic into the handler it belongs to.
type Kind int

const (
	// KindIgnored marks topics the bridge does not handle. Unknown
	// topics are dropped, not errors: devices may publish on future
	// topics an older bridge does not know.
	KindIgnored Kind = iota

	// KindStatus is a status report on the approved namespace.
	KindStatus

	// KindPendingStatus is a status report on the pending namespace.
	KindPendingStatus

	// KindTelemetry is a periodic health sample.
	KindTelemetry

	// KindEvent is a discrete occurrence (wifi scan, screenshot,
	// geolocation or the generic events topic).
	KindEvent

	// KindFullyDeviceInfo is a Fully Kiosk device-info broadcast.
	KindFullyDeviceInfo

	// KindFullyEvent is a Fully Kiosk discrete event.
	KindFullyEvent

	// KindCommandAck is a relay command acknowledgement.
	KindCommandAck

	// KindRelayStatus is the relay's liveness report.
	KindRelayStatus

	// KindProvision is a provisioning bootstrap request.
	KindProvision
)

// Intent is a classified inbound message: where it came from, what it
// is, and its decoded payload.
type Intent struct {
	Kind Kind

	// Device is set for all device-scoped kinds. Identifiers from the
	// fully/ namespace arrive without the family prefix and are
	// normalized here, so downstream code sees one identifier space.
	Device device.Ref

	// EventType is the event kind for KindEvent and KindFullyEvent.
	EventType string

	// Command is the acknowledged command for KindCommandAck.
	Command string

	// Code is the setup code for KindProvision.
	Code string

	// Payload is the decoded JSON object. Unparseable payloads are
	// wrapped as {"raw": <text>} rather than dropped.
	Payload map[string]any
}

// deviceEventKinds are the per-device event subtopics.
var deviceEventKinds = map[string]bool{
	"events":      true,
	"wifi-scan":   true,
	"screenshot":  true,
	"geolocation": true,
}

// Classify parses a topic and payload into an Intent. The second return
// is false for topics the bridge ignores.
func Classify(topic string, payload []byte) (Intent, bool) {
	parts := strings.Split(topic, "/")

	switch parts[0] {
	case "devices":
		return classifyDevices(parts, payload)
	case "fully":
		return classifyFully(parts, payload)
	case "provision":
		if len(parts) == 3 && parts[2] == "request" && parts[1] != "" {
			return Intent{
				Kind:    KindProvision,
				Code:    parts[1],
				Payload: decodePayload(payload),
			}, true
		}
	}

	return Intent{}, false
}

func classifyDevices(parts []string, payload []byte) (Intent, bool) {
	// devices/pending/<id>/status
	if len(parts) == 4 && parts[1] == "pending" && parts[3] == "status" && parts[2] != "" {
		return Intent{
			Kind:    KindPendingStatus,
			Device:  device.ParseRef(parts[2]),
			Payload: decodePayload(payload),
		}, true
	}

	if len(parts) != 3 || parts[1] == "" {
		return Intent{}, false
	}

	ref := device.ParseRef(parts[1])
	switch {
	case parts[2] == "status":
		return Intent{Kind: KindStatus, Device: ref, Payload: decodePayload(payload)}, true
	case parts[2] == "telemetry":
		return Intent{Kind: KindTelemetry, Device: ref, Payload: decodePayload(payload)}, true
	case deviceEventKinds[parts[2]]:
		return Intent{
			Kind:      KindEvent,
			Device:    ref,
			EventType: parts[2],
			Payload:   decodePayload(payload),
		}, true
	}

	return Intent{}, false
}

func classifyFully(parts []string, payload []byte) (Intent, bool) {
	switch {
	// fully/deviceInfo/<id>
	case len(parts) == 3 && parts[1] == "deviceInfo" && parts[2] != "":
		return Intent{
			Kind:    KindFullyDeviceInfo,
			Device:  fullyRef(parts[2]),
			Payload: decodePayload(payload),
		}, true

	// fully/event/<type>/<id>
	case len(parts) == 4 && parts[1] == "event" && parts[2] != "" && parts[3] != "":
		return Intent{
			Kind:      KindFullyEvent,
			Device:    fullyRef(parts[3]),
			EventType: parts[2],
			Payload:   decodePayload(payload),
		}, true

	// fully/cmd/<id>/<cmd>/ack
	case len(parts) == 5 && parts[1] == "cmd" && parts[4] == "ack" && parts[2] != "" && parts[3] != "":
		return Intent{
			Kind:    KindCommandAck,
			Device:  fullyRef(parts[2]),
			Command: parts[3],
			Payload: decodePayload(payload),
		}, true

	// fully/relay/status
	case len(parts) == 3 && parts[1] == "relay" && parts[2] == "status":
		return Intent{Kind: KindRelayStatus, Payload: decodePayload(payload)}, true
	}

	return Intent{}, false
}

// fullyRef builds the Ref for a bare identifier from the fully/ namespace.
func fullyRef(bare string) device.Ref {
	return device.Ref{ID: "fully-" + bare, Family: device.FamilyFully}
}

// decodePayload decodes a JSON object payload. Anything else (invalid
// JSON, arrays, scalars) is preserved under a raw fallback key so the
// message still reaches its handler.
func decodePayload(payload []byte) map[string]any {
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err == nil && decoded != nil {
		return decoded
	}
	return map[string]any{"raw": string(payload)}
}
