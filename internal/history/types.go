package history

import "time"

// Level classifies the severity of a device log entry.
type Level string

const (
	// LevelInfo marks routine entries (status changes, command dispatch).
	LevelInfo Level = "info"

	// LevelSuccess marks positive outcomes (device connected, approved).
	LevelSuccess Level = "success"

	// LevelWarning marks degraded but working conditions.
	LevelWarning Level = "warning"

	// LevelCritical marks conditions that need operator attention.
	LevelCritical Level = "critical"
)

// Category groups device log entries by origin.
type Category string

const (
	// CategorySystem covers lifecycle entries (registration, approval).
	CategorySystem Category = "system"

	// CategoryConnection covers online/offline transitions.
	CategoryConnection Category = "connection"

	// CategoryAlert covers health threshold breaches and summaries.
	CategoryAlert Category = "alert"

	// CategoryCommand covers command dispatch and acknowledgements.
	CategoryCommand Category = "command"

	// CategoryProvisioning covers setup-code exchanges.
	CategoryProvisioning Category = "provisioning"
)

// TelemetrySample is one health report from a device, stored with its
// full payload so fields the bridge does not interpret are kept.
type TelemetrySample struct {
	ID        int64          `json:"id"`
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"ts"`
	Payload   map[string]any `json:"payload"`
}

// Event is an auxiliary report from a device (wifi scan, screenshot
// notice, geolocation fix).
type Event struct {
	ID        int64          `json:"id"`
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"ts"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

// LogEntry is one line in a device's activity log. Entries may reference
// device identifiers that never became catalogue devices (pending or
// since-deleted), so the table carries no foreign key.
type LogEntry struct {
	ID        int64          `json:"id"`
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"ts"`
	Level     Level          `json:"level"`
	Category  Category       `json:"category"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
