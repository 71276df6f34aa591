package fullyrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/logging"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/mqtt"
)

// Bus is the broker connection the relay needs.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Relay bridges MQTT commands onto the Fully Kiosk HTTP interface.
//
// Tablets cannot subscribe to MQTT themselves; they only broadcast
// deviceInfo. The relay listens for those broadcasts to learn each
// tablet's LAN address, executes commands against the tablet's remote
// admin port, and acknowledges the outcome back on the bus.
type Relay struct {
	bus      Bus
	registry *Registry
	client   *Client
	log      *logging.Logger
	topics   mqtt.Topics

	// now is replaceable in tests.
	now func() time.Time
}

// NewRelay creates a Relay.
func NewRelay(bus Bus, registry *Registry, client *Client, log *logging.Logger) *Relay {
	return &Relay{
		bus:      bus,
		registry: registry,
		client:   client,
		log:      log,
		now:      time.Now,
	}
}

// Start subscribes to discovery broadcasts and command dispatches, then
// announces the relay's presence with a retained status message.
func (r *Relay) Start(ctx context.Context) error {
	if err := r.bus.Subscribe(r.topics.AllFullyDeviceInfo(), 1, func(topic string, payload []byte) error {
		return r.handleDeviceInfo(topic, payload)
	}); err != nil {
		return fmt.Errorf("subscribing to deviceInfo: %w", err)
	}

	if err := r.bus.Subscribe(r.topics.AllFullyCommands(), 1, func(topic string, payload []byte) error {
		return r.handleCommand(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	r.log.Info("relay started", "known_devices", r.registry.Count())
	return r.PublishStatus()
}

// PublishStatus publishes the retained liveness message with the
// current device count.
func (r *Relay) PublishStatus() error {
	payload, err := json.Marshal(map[string]any{
		"status":    "online",
		"timestamp": r.now().Unix(),
		"devices":   r.registry.Count(),
	})
	if err != nil {
		return fmt.Errorf("marshalling relay status: %w", err)
	}
	if err := r.bus.Publish(r.topics.FullyRelayStatus(), payload, 1, true); err != nil {
		return fmt.Errorf("publishing relay status: %w", err)
	}
	return nil
}

// handleDeviceInfo records a tablet announcement in the registry.
func (r *Relay) handleDeviceInfo(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[2] == "" {
		return nil
	}
	deviceID := parts[2]

	var info map[string]any
	if err := json.Unmarshal(payload, &info); err != nil {
		r.log.Warn("unparseable deviceInfo", "device_id", deviceID, "error", err)
		return nil
	}

	ip, _ := info["ip4"].(string)
	if ip == "" {
		return nil
	}
	name, _ := info["deviceName"].(string)

	wasNew, err := r.registry.Discover(deviceID, ip, name)
	if err != nil {
		return fmt.Errorf("recording device %s: %w", deviceID, err)
	}
	if wasNew {
		r.log.Info("device discovered", "device_id", deviceID, "ip", ip, "name", name)
		return r.PublishStatus()
	}
	return nil
}

// handleCommand executes one dispatched command and acknowledges the
// result. Matches fully/cmd/<id>/<action>; the relay's own ack
// publishes have five topic levels and never reach this subscription.
func (r *Relay) handleCommand(ctx context.Context, topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[2] == "" || parts[3] == "" {
		return nil
	}
	deviceID, action := parts[2], parts[3]

	params := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &params); err != nil {
			r.log.Warn("unparseable command payload",
				"device_id", deviceID, "action", action, "error", err)
			params = map[string]any{}
		}
	}

	// A credential in the payload updates the stored one before the
	// command runs, so a password rotation and the first command using
	// it arrive as one message.
	if password, ok := params["password"].(string); ok {
		if err := r.registry.SetPassword(deviceID, password); err != nil {
			r.log.Error("failed to store password", "device_id", deviceID, "error", err)
		}
	}

	dev, ok := r.registry.Get(deviceID)
	if !ok {
		result := errorResult("Unknown device: %s. Wait for device to send deviceInfo.", deviceID)
		return r.publishAck(deviceID, action, result)
	}

	r.log.Info("executing command", "device_id", deviceID, "action", action, "ip", dev.IP)
	result := r.client.Execute(ctx, dev, action, params)
	if result.Status != "OK" {
		r.log.Warn("command failed",
			"device_id", deviceID, "action", action, "statustext", result.Statustext)
	}

	return r.publishAck(deviceID, action, result)
}

// publishAck closes the command loop back toward the bridge.
func (r *Relay) publishAck(deviceID, action string, result CommandResult) error {
	payload, err := json.Marshal(map[string]any{
		"device_id": deviceID,
		"command":   action,
		"result":    result,
		"timestamp": r.now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshalling ack: %w", err)
	}

	topic := r.topics.FullyCommandAck(deviceID, action)
	if err := r.bus.Publish(topic, payload, 1, false); err != nil {
		return fmt.Errorf("publishing ack to %s: %w", topic, err)
	}
	return nil
}
