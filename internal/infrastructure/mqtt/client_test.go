package mqtt

import (
	"context"
	"errors"
	"strings"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "infoscreen-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// disconnectedClient builds a client whose session never came up, for
// exercising validation paths without a broker.
func disconnectedClient() *Client {
	return &Client{
		client:        pahomqtt.NewClient(buildClientOptions(testConfig())),
		subscriptions: make(map[string]subscription),
	}
}

func TestPublish_Validation(t *testing.T) {
	c := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte(`{}`), 1, ErrInvalidTopic},
		{"qos too high", "devices/pi-7/status", []byte(`{}`), 3, ErrInvalidQoS},
		{"oversized payload", "devices/pi-7/status", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "devices/pi-7/status", []byte(`{}`), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := disconnectedClient()
	handler := func(topic string, payload []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"qos too high", "devices/#", 3, handler, ErrInvalidQoS},
		{"nil handler", "devices/#", 1, nil, ErrSubscribeFailed},
		{"not connected", "devices/#", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClose_ZeroClient(t *testing.T) {
	var c Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := disconnectedClient()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	c := disconnectedClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

// fakeMessage satisfies pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type capturedLog struct {
	level string
	msg   string
}

type captureLogger struct {
	entries []capturedLog
}

func (l *captureLogger) Error(msg string, args ...any) {
	l.entries = append(l.entries, capturedLog{"error", msg})
}

func (l *captureLogger) Warn(msg string, args ...any) {
	l.entries = append(l.entries, capturedLog{"warn", msg})
}

func TestWrapHandler_PanicRecovered(t *testing.T) {
	c := disconnectedClient()
	logger := &captureLogger{}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		panic("malformed payload")
	})

	// Must not propagate the panic to the paho router goroutine.
	wrapped(nil, fakeMessage{topic: "devices/pi-7/status", payload: []byte(`{`)})

	if len(logger.entries) != 1 || logger.entries[0].level != "error" {
		t.Fatalf("logged entries = %+v, want one error", logger.entries)
	}
}

func TestWrapHandler_ErrorLogged(t *testing.T) {
	c := disconnectedClient()
	logger := &captureLogger{}
	c.SetLogger(logger)

	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		return errors.New("unknown action")
	})
	wrapped(nil, fakeMessage{topic: "fully/cmd/a1b2c3d4/selfDestruct"})

	if len(logger.entries) != 1 || logger.entries[0].level != "warn" {
		t.Fatalf("logged entries = %+v, want one warning", logger.entries)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	c := disconnectedClient()

	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		panic("no logger set")
	})
	wrapped(nil, fakeMessage{topic: "devices/pi-7/status"})
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device status", topics.DeviceStatus("pi-7"), "devices/pi-7/status"},
		{"pending status", topics.PendingStatus("pi-new"), "devices/pending/pi-new/status"},
		{"device telemetry", topics.DeviceTelemetry("pi-7"), "devices/pi-7/telemetry"},
		{"device event", topics.DeviceEvent("pi-7", "wifi-scan"), "devices/pi-7/event/wifi-scan"},
		{"device command", topics.DeviceCommand("pi-7", "reboot"), "devices/pi-7/cmd/reboot"},
		{"pending approve", topics.PendingApprove("pi-new"), "devices/pending/pi-new/cmd/approve"},
		{"fully device info", topics.FullyDeviceInfo("a1b2c3d4"), "fully/deviceInfo/a1b2c3d4"},
		{"fully event", topics.FullyEvent("screenOn", "a1b2c3d4"), "fully/event/screenOn/a1b2c3d4"},
		{"fully command", topics.FullyCommand("a1b2c3d4", "loadUrl"), "fully/cmd/a1b2c3d4/loadUrl"},
		{"fully command ack", topics.FullyCommandAck("a1b2c3d4", "loadUrl"), "fully/cmd/a1b2c3d4/loadUrl/ack"},
		{"relay status", topics.FullyRelayStatus(), "fully/relay/status"},
		{"bridge status", topics.BridgeStatus(), "bridge/status"},
		{"provision request", topics.ProvisionRequest("4711"), "provision/4711/request"},
		{"provision response", topics.ProvisionResponse("4711", "pi-7"), "provision/4711/response/pi-7"},
		{"all device topics", topics.AllDeviceTopics(), "devices/#"},
		{"all fully topics", topics.AllFullyTopics(), "fully/#"},
		{"all provision requests", topics.AllProvisionRequests(), "provision/+/request"},
		{"all fully device info", topics.AllFullyDeviceInfo(), "fully/deviceInfo/+"},
		{"all fully commands", topics.AllFullyCommands(), "fully/cmd/+/+"},
		{"all fully command acks", topics.AllFullyCommandAcks(), "fully/cmd/+/+/ack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// The command subscription pattern must be structurally incapable of
// matching ack topics, or the relay would consume its own output.
func TestCommandPatternExcludesAcks(t *testing.T) {
	topics := Topics{}

	pattern := strings.Split(topics.AllFullyCommands(), "/")
	ack := strings.Split(topics.FullyCommandAck("a1b2c3d4", "loadUrl"), "/")
	if len(pattern) == len(ack) {
		t.Fatalf("command pattern %q has the same depth as ack topic %q",
			topics.AllFullyCommands(), topics.FullyCommandAck("a1b2c3d4", "loadUrl"))
	}

	cmd := strings.Split(topics.FullyCommand("a1b2c3d4", "loadUrl"), "/")
	if len(pattern) != len(cmd) {
		t.Fatalf("command pattern %q does not match command topic depth %q",
			topics.AllFullyCommands(), topics.FullyCommand("a1b2c3d4", "loadUrl"))
	}
}
