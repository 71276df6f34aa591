package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/logging"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/mqtt"
)

// messageBufferSize bounds the inbound queue. When the consumer falls
// behind, the paho callback blocks, which throttles the broker
// connection instead of dropping or reordering messages.
const messageBufferSize = 256

// Subscriber is the inbound side of the bus connection.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

type inboundMessage struct {
	topic   string
	payload []byte
}

// Bridge subscribes to the device namespaces and feeds every message
// through a single consumer goroutine, so updates for a device are
// applied in arrival order.
type Bridge struct {
	bus         Subscriber
	reconciler  *Reconciler
	provisioner *Provisioner
	log         *logging.Logger
	topics      mqtt.Topics

	messages chan inboundMessage
	wg       sync.WaitGroup
}

// New creates a Bridge.
func New(bus Subscriber, reconciler *Reconciler, provisioner *Provisioner, log *logging.Logger) *Bridge {
	return &Bridge{
		bus:         bus,
		reconciler:  reconciler,
		provisioner: provisioner,
		log:         log,
		messages:    make(chan inboundMessage, messageBufferSize),
	}
}

// Start subscribes to the bus and runs the consumer until ctx is
// cancelled. It returns once subscriptions are established; processing
// continues in the background until Stop.
func (b *Bridge) Start(ctx context.Context) error {
	handler := func(topic string, payload []byte) error {
		msg := inboundMessage{topic: topic, payload: payload}
		select {
		case b.messages <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	subscriptions := []string{
		b.topics.AllDeviceTopics(),
		b.topics.AllFullyTopics(),
		b.topics.AllProvisionRequests(),
	}
	for _, topic := range subscriptions {
		if err := b.bus.Subscribe(topic, 1, handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}

	b.wg.Add(1)
	go b.consume(ctx)

	b.log.Info("bridge started", "subscriptions", len(subscriptions))
	return nil
}

// Stop waits for the consumer goroutine to drain. Call after
// cancelling the context passed to Start.
func (b *Bridge) Stop() {
	b.wg.Wait()
}

func (b *Bridge) consume(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.messages:
			if err := b.dispatch(ctx, msg); err != nil {
				b.log.Error("failed to process message",
					"topic", msg.topic, "error", err)
			}
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, msg inboundMessage) error {
	intent, ok := Classify(msg.topic, msg.payload)
	if !ok {
		// Includes our own outbound command publishes, which the
		// wildcard subscriptions echo back.
		return nil
	}

	switch intent.Kind {
	case KindStatus:
		return b.reconciler.ApplyStatus(ctx, intent.Device, false, intent.Payload)
	case KindPendingStatus:
		return b.reconciler.ApplyStatus(ctx, intent.Device, true, intent.Payload)
	case KindTelemetry:
		return b.reconciler.ApplyTelemetry(ctx, intent.Device, intent.Payload)
	case KindEvent:
		return b.reconciler.ApplyEvent(ctx, intent.Device, intent.EventType, intent.Payload)
	case KindFullyDeviceInfo:
		return b.reconciler.ApplyFullyDeviceInfo(ctx, intent.Device, intent.Payload)
	case KindFullyEvent:
		return b.reconciler.ApplyEvent(ctx, intent.Device, intent.EventType, intent.Payload)
	case KindCommandAck:
		return b.reconciler.HandleAck(ctx, intent.Device, intent.Command, intent.Payload)
	case KindRelayStatus:
		b.log.Info("relay status received",
			"status", intent.Payload["status"],
			"devices", intent.Payload["devices"])
		return nil
	case KindProvision:
		return b.provisioner.HandleRequest(ctx, intent.Code, intent.Payload)
	default:
		return nil
	}
}
