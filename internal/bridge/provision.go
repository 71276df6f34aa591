package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ufitech/infoscreen-bridge/internal/customer"
	"github.com/ufitech/infoscreen-bridge/internal/device"
	"github.com/ufitech/infoscreen-bridge/internal/history"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/logging"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/mqtt"
)

// Provisioner answers code-based bootstrap requests from fresh devices.
type Provisioner struct {
	devices   device.Repository
	customers customer.Repository
	history   history.Repository
	pub       Publisher
	log       *logging.Logger
	topics    mqtt.Topics

	// now is replaceable in tests.
	now func() time.Time
}

// NewProvisioner creates a Provisioner.
func NewProvisioner(
	devices device.Repository,
	customers customer.Repository,
	hist history.Repository,
	pub Publisher,
	log *logging.Logger,
) *Provisioner {
	return &Provisioner{
		devices:   devices,
		customers: customers,
		history:   hist,
		pub:       pub,
		log:       log,
		now:       time.Now,
	}
}

// HandleRequest processes a provision/<code>/request message.
//
// An unknown code produces no publish and no state change, so a scanner
// probing codes learns nothing. A known code creates or updates the
// device, links it to the code's customer and publishes a retained
// response the device receives even if it reconnects later. Approval is
// granted only by the code's auto_approve flag; otherwise the device's
// prior approval state stands.
func (p *Provisioner) HandleRequest(ctx context.Context, code string, payload map[string]any) error {
	deviceID := ""
	if s := stringField(payload, "device_id"); s != nil {
		deviceID = *s
	}
	if deviceID == "" {
		return nil
	}

	record, err := p.customers.GetCode(ctx, code)
	if err != nil {
		if errors.Is(err, customer.ErrCodeNotFound) {
			return nil
		}
		return fmt.Errorf("looking up code: %w", err)
	}

	owner, err := p.customers.GetCustomer(ctx, record.CustomerID)
	if err != nil {
		return fmt.Errorf("loading customer %d: %w", record.CustomerID, err)
	}

	dev, err := p.devices.GetByID(ctx, deviceID)
	isNew := errors.Is(err, device.ErrDeviceNotFound)
	if err != nil && !isNew {
		return fmt.Errorf("loading device %s: %w", deviceID, err)
	}
	if isNew {
		dev = &device.Device{
			ID:     deviceID,
			Status: device.StatusUnknown,
			Name:   defaultName(deviceID),
		}
	}
	if dev.Name == "" {
		dev.Name = defaultName(deviceID)
	}

	if s := stringField(payload, "ip"); s != nil {
		dev.IP = *s
	}
	if s := stringField(payload, "mac"); s != nil {
		dev.MAC = *s
	}
	dev.URL = record.StartURL
	if record.AutoApprove {
		dev.Approved = true
	}
	now := p.now().UTC()
	dev.LastSeen = &now

	if isNew {
		err = p.devices.Create(ctx, dev)
	} else {
		err = p.devices.Update(ctx, dev)
	}
	if err != nil {
		return fmt.Errorf("storing device %s: %w", deviceID, err)
	}

	if err := p.customers.Assign(ctx, deviceID, record); err != nil {
		return fmt.Errorf("assigning device %s: %w", deviceID, err)
	}

	message := "Enhed gen-provisioneret"
	if isNew {
		message = "Ny enhed provisioneret"
	}
	entry := &history.LogEntry{
		DeviceID: deviceID,
		Level:    history.LevelSuccess,
		Category: history.CategoryProvisioning,
		Message:  message,
		Details:  map[string]any{"code": code, "customer": owner.Name},
	}
	if err := p.history.AppendLog(ctx, entry); err != nil {
		p.log.Error("failed to append provisioning log", "device_id", deviceID, "error", err)
	}

	return p.publishResponse(code, dev, record, owner)
}

// publishResponse sends the retained bootstrap answer. Approved devices
// get the full config bundle; devices waiting for approval get a marker
// and the customer name only, never settings or secrets.
func (p *Provisioner) publishResponse(code string, dev *device.Device, record *customer.Code, owner *customer.Customer) error {
	var response map[string]any
	if dev.Approved {
		response = map[string]any{
			"status":         "approved",
			"start_url":      record.StartURL,
			"kiosk_mode":     record.KioskMode,
			"keep_screen_on": record.KeepScreenOn,
			"customer_id":    owner.ID,
			"customer_name":  owner.Name,
		}
	} else {
		response = map[string]any{
			"status":        "waiting_approval",
			"customer_name": owner.Name,
		}
	}

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshalling provision response: %w", err)
	}

	topic := p.topics.ProvisionResponse(code, dev.ID)
	if err := p.pub.Publish(topic, data, 1, true); err != nil {
		return fmt.Errorf("publishing provision response to %s: %w", topic, err)
	}

	return nil
}

// defaultName derives a display name from the tail of a device id.
func defaultName(deviceID string) string {
	tail := deviceID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return "Skærm " + tail
}
