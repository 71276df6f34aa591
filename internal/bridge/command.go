package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ufitech/infoscreen-bridge/internal/device"
	"github.com/ufitech/infoscreen-bridge/internal/history"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/logging"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/mqtt"
)

// secretKey is the reserved payload key carrying the per-device relay
// credential. Operators never supply it; the relay consumes it.
const secretKey = "password"

// commandNames maps actions to the Danish display names used in the
// device log.
var commandNames = map[string]string{
	// Raspberry Pi commands
	"reboot":       "Genstart",
	"screenshot":   "Screenshot",
	"wifi-scan":    "WiFi scan",
	"get-info":     "Hent info",
	"log-tail":     "Hent log",
	"get-location": "Hent lokation",
	"set-url":      "Skift URL",

	// Fully Kiosk commands
	"screenOn":         "Tænd skærm",
	"screenOff":        "Sluk skærm",
	"setBrightness":    "Sæt lysstyrke",
	"loadUrl":          "Skift URL",
	"loadStartUrl":     "Gå til start-URL",
	"reload":           "Genindlæs side",
	"startScreensaver": "Start pauseskærm",
	"stopScreensaver":  "Stop pauseskærm",
	"restartApp":       "Genstart app",
	"exitApp":          "Luk app",
	"deviceInfo":       "Hent enhedsinfo",
	"setStartUrl":      "Sæt start-URL",
	"setKioskMode":     "Kioskstilstand",
}

// CommandName returns the Danish display name for an action, falling
// back to the action itself.
func CommandName(action string) string {
	if name, ok := commandNames[action]; ok {
		return name
	}
	return action
}

// Publisher is the outbound side of the bus connection.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// CommandRelay translates operator commands into the wire format of the
// target device's family and publishes them.
type CommandRelay struct {
	secrets device.SecretStore
	history history.Repository
	pub     Publisher
	log     *logging.Logger
	topics  mqtt.Topics
}

// NewCommandRelay creates a CommandRelay.
func NewCommandRelay(secrets device.SecretStore, hist history.Repository, pub Publisher, log *logging.Logger) *CommandRelay {
	return &CommandRelay{
		secrets: secrets,
		history: hist,
		pub:     pub,
		log:     log,
	}
}

// Send publishes an operator command to a device.
//
// Fully Kiosk devices get the relay's command namespace with the family
// prefix stripped; everything else gets the generic per-device command
// topic. A stored per-device secret is injected under the reserved key
// so the downstream relay can authenticate without operator involvement.
func (c *CommandRelay) Send(ctx context.Context, deviceID, action string, params map[string]any) error {
	if deviceID == "" || action == "" {
		return fmt.Errorf("device id and action are required")
	}

	ref := device.ParseRef(deviceID)

	var topic string
	if ref.IsFully() {
		topic = c.topics.FullyCommand(ref.Native(), action)
	} else {
		topic = c.topics.DeviceCommand(ref.ID, action)
	}

	payload := make(map[string]any, len(params)+2)
	for k, v := range params {
		payload[k] = v
	}
	if _, ok := payload["command_id"]; !ok {
		payload["command_id"] = uuid.NewString()
	}
	if _, ok := payload[secretKey]; !ok {
		secret, err := c.secrets.GetSecret(ctx, ref.ID)
		if err != nil {
			return fmt.Errorf("loading secret for %s: %w", ref.ID, err)
		}
		if secret != "" {
			payload[secretKey] = secret
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling command payload: %w", err)
	}

	if err := c.pub.Publish(topic, data, 1, false); err != nil {
		return fmt.Errorf("publishing command to %s: %w", topic, err)
	}

	details := map[string]any{"action": action}
	if url, ok := params["url"].(string); ok && url != "" {
		details["url"] = url
	}
	if brightness, ok := params["brightness"]; ok {
		details["brightness"] = brightness
	}

	c.appendLog(ctx, &history.LogEntry{
		DeviceID: ref.ID,
		Level:    history.LevelInfo,
		Category: history.CategoryCommand,
		Message:  fmt.Sprintf("Kommando sendt: %s", CommandName(action)),
		Details:  details,
	})

	return nil
}

// Approve publishes the approval command on the device's pending
// namespace. The device answers with a regular status report, which is
// what actually flips the stored approval flag.
func (c *CommandRelay) Approve(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device id is required")
	}

	topic := c.topics.PendingApprove(deviceID)
	data, err := json.Marshal(map[string]any{"approved": true})
	if err != nil {
		return fmt.Errorf("marshalling approve payload: %w", err)
	}

	if err := c.pub.Publish(topic, data, 1, false); err != nil {
		return fmt.Errorf("publishing approval to %s: %w", topic, err)
	}

	c.appendLog(ctx, &history.LogEntry{
		DeviceID: deviceID,
		Level:    history.LevelSuccess,
		Category: history.CategorySystem,
		Message:  "Enhed godkendt",
	})

	return nil
}

// appendLog writes a device log entry; failures never fail the command.
func (c *CommandRelay) appendLog(ctx context.Context, entry *history.LogEntry) {
	if err := c.history.AppendLog(ctx, entry); err != nil {
		c.log.Error("failed to append command log",
			"device_id", entry.DeviceID,
			"error", err,
		)
	}
}
