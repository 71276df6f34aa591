package device

import (
	"strings"
	"time"
)

// Family identifies how a device is managed.
//
// Standard devices are Linux signage clients that run their own MQTT
// agent and publish JSON directly. Fully devices are Android tablets
// running Fully Kiosk Browser, reached over its local HTTP API through
// the relay process.
type Family string

const (
	// FamilyStandard is a Linux signage client speaking MQTT natively.
	FamilyStandard Family = "standard"

	// FamilyFully is an Android tablet running Fully Kiosk Browser.
	FamilyFully Family = "fully"
)

// fullyPrefix marks device identifiers that belong to Fully Kiosk tablets.
const fullyPrefix = "fully-"

// Ref is a parsed device identifier.
//
// The wire and storage identifier keeps any family prefix; Native returns
// the identifier the device itself knows (the Fully Kiosk device ID has
// no prefix). Parse once at the edge and pass the Ref around instead of
// re-inspecting the raw string.
type Ref struct {
	// ID is the full identifier as used on MQTT topics and in the database.
	ID string

	// Family is the management family derived from the identifier.
	Family Family
}

// ParseRef classifies a raw device identifier into a Ref.
func ParseRef(id string) Ref {
	if strings.HasPrefix(id, fullyPrefix) && len(id) > len(fullyPrefix) {
		return Ref{ID: id, Family: FamilyFully}
	}
	return Ref{ID: id, Family: FamilyStandard}
}

// Native returns the identifier without the family prefix. For standard
// devices this is the same as ID.
func (r Ref) Native() string {
	if r.Family == FamilyFully {
		return strings.TrimPrefix(r.ID, fullyPrefix)
	}
	return r.ID
}

// IsFully reports whether the referenced device is a Fully Kiosk tablet.
func (r Ref) IsFully() bool {
	return r.Family == FamilyFully
}

// Status represents the last reported connectivity state of a device.
type Status string

const (
	// StatusOnline means the device recently reported itself alive.
	StatusOnline Status = "online"

	// StatusOffline means the device reported a clean shutdown or its
	// last will fired.
	StatusOffline Status = "offline"

	// StatusUnknown means no status report has been seen yet.
	StatusUnknown Status = "unknown"
)

// ValidStatus reports whether s is a recognised status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusOffline, StatusUnknown:
		return true
	}
	return false
}

// Device represents a signage device known to the bridge.
//
// Identity fields (IP, MAC, URL, Model, AndroidVersion) are empty strings
// until the device first reports them. Devices start unapproved; only
// approved devices accept commands and appear in the fleet views.
type Device struct {
	// ID is the unique device identifier. Fully Kiosk tablets carry a
	// "fully-" prefix, see ParseRef.
	ID string `json:"id"`

	// Name is a human-facing display name, empty until assigned.
	Name string `json:"name"`

	// Status is the last reported connectivity state.
	Status Status `json:"status"`

	// Approved marks devices that an operator has accepted into the fleet.
	Approved bool `json:"approved"`

	// LastSeen is the time of the most recent report from the device.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	// IP is the device's last reported IPv4 address.
	IP string `json:"ip,omitempty"`

	// MAC is the device's hardware address.
	MAC string `json:"mac,omitempty"`

	// URL is the page the device currently displays.
	URL string `json:"url,omitempty"`

	// Model is the hardware model string reported by the device.
	Model string `json:"model,omitempty"`

	// AndroidVersion is set for Fully Kiosk tablets only.
	AndroidVersion string `json:"android_version,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the parsed identifier for the device.
func (d *Device) Ref() Ref {
	return ParseRef(d.ID)
}

// Update carries a partial device update. Nil fields are left untouched
// when merged, so a status report that omits a field never erases a value
// an earlier report filled in.
type Update struct {
	Name           *string
	Status         *Status
	LastSeen       *time.Time
	IP             *string
	MAC            *string
	URL            *string
	Model          *string
	AndroidVersion *string
}

// Merge applies the non-nil fields of u to the device and reports whether
// anything changed.
func (d *Device) Merge(u Update) bool {
	changed := false
	if u.Name != nil && d.Name != *u.Name {
		d.Name = *u.Name
		changed = true
	}
	if u.Status != nil && d.Status != *u.Status {
		d.Status = *u.Status
		changed = true
	}
	if u.LastSeen != nil && (d.LastSeen == nil || !d.LastSeen.Equal(*u.LastSeen)) {
		t := u.LastSeen.UTC()
		d.LastSeen = &t
		changed = true
	}
	if u.IP != nil && d.IP != *u.IP {
		d.IP = *u.IP
		changed = true
	}
	if u.MAC != nil && d.MAC != *u.MAC {
		d.MAC = *u.MAC
		changed = true
	}
	if u.URL != nil && d.URL != *u.URL {
		d.URL = *u.URL
		changed = true
	}
	if u.Model != nil && d.Model != *u.Model {
		d.Model = *u.Model
		changed = true
	}
	if u.AndroidVersion != nil && d.AndroidVersion != *u.AndroidVersion {
		d.AndroidVersion = *u.AndroidVersion
		changed = true
	}
	return changed
}
