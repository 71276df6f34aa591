package customer

import "time"

// Customer is an organisation that owns signage devices.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Code is a provisioning code handed to an installer. A device that
// broadcasts the code receives the customer's display settings and,
// when AutoApprove is set, skips the manual approval step.
type Code struct {
	// Code is the four digit setup code, unique across all customers.
	Code string `json:"code"`

	CustomerID int64 `json:"customer_id"`

	// StartURL is the page newly provisioned devices should display.
	StartURL string `json:"start_url"`

	// AutoApprove admits provisioned devices into the fleet without
	// operator review.
	AutoApprove bool `json:"auto_approve"`

	// KioskMode locks the device UI to the display page.
	KioskMode bool `json:"kiosk_mode"`

	// KeepScreenOn disables the device's screen timeout.
	KeepScreenOn bool `json:"keep_screen_on"`

	CreatedAt time.Time `json:"created_at"`
}

// Assignment links a device to the customer whose code provisioned it.
type Assignment struct {
	DeviceID   string    `json:"device_id"`
	CustomerID int64     `json:"customer_id"`

	// Code is the setup code used, kept for audit.
	Code string `json:"code"`

	AssignedAt time.Time `json:"assigned_at"`
}

// Location is the last reported geolocation fix for a device. One row
// per device, updated in place.
type Location struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Provider  string    `json:"provider"`

	// Address is a human-readable place synthesized from city/region/
	// country fields when the fix carries them.
	Address   string    `json:"address,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
