package fullyrelay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/config"
)

// RegisteredDevice is one discovered tablet with its unicast endpoint
// and credential.
type RegisteredDevice struct {
	DeviceID string    `json:"device_id"`
	IP       string    `json:"ip"`
	Password string    `json:"password"`
	Port     int       `json:"port"`
	Name     string    `json:"name,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

// registryFile is the on-disk shape of the state file.
type registryFile struct {
	Devices []RegisteredDevice `json:"devices"`
}

// Registry maps device ids to their discovered endpoints. Discovery is
// broadcast-driven: tablets announce themselves on the bus and the
// registry remembers where to reach them. State persists to a JSON file
// so a relay restart does not wait for the next announcement round.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*RegisteredDevice

	path            string
	defaultPort     int
	defaultPassword string
}

// NewRegistry creates a Registry persisting to cfg.StateFile.
func NewRegistry(cfg config.RelayConfig) *Registry {
	return &Registry{
		devices:         make(map[string]*RegisteredDevice),
		path:            cfg.StateFile,
		defaultPort:     cfg.ControlPort,
		defaultPassword: cfg.DefaultPassword,
	}
}

// Load reads the state file. A missing file is not an error.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading registry file: %w", err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing registry file %s: %w", r.path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[string]*RegisteredDevice, len(file.Devices))
	for i := range file.Devices {
		d := file.Devices[i]
		r.devices[d.DeviceID] = &d
	}

	return nil
}

// Discover records a device announcement and reports whether the device
// was previously unknown. Known devices keep their stored password; new
// devices start with the default credential.
func (r *Registry) Discover(deviceID, ip, name string) (bool, error) {
	if deviceID == "" {
		return false, fmt.Errorf("device id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, known := r.devices[deviceID]
	if known {
		existing.IP = ip
		if name != "" {
			existing.Name = name
		}
		existing.LastSeen = time.Now().UTC()
	} else {
		r.devices[deviceID] = &RegisteredDevice{
			DeviceID: deviceID,
			IP:       ip,
			Password: r.defaultPassword,
			Port:     r.defaultPort,
			Name:     name,
			LastSeen: time.Now().UTC(),
		}
	}

	if err := r.saveLocked(); err != nil {
		return false, err
	}
	return !known, nil
}

// Get looks up a device by id, accepting both the bare id tablets
// announce and the prefixed form the bridge uses.
func (r *Registry) Get(deviceID string) (*RegisteredDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if d, ok := r.devices[deviceID]; ok {
		copied := *d
		return &copied, true
	}
	if bare := strings.TrimPrefix(deviceID, "fully-"); bare != deviceID {
		if d, ok := r.devices[bare]; ok {
			copied := *d
			return &copied, true
		}
	}
	return nil, false
}

// SetPassword stores a new credential for a known device. Unknown
// devices are ignored; the credential arrives again with the next
// command.
func (r *Registry) SetPassword(deviceID, password string) error {
	if password == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[deviceID]
	if !ok {
		if bare := strings.TrimPrefix(deviceID, "fully-"); bare != deviceID {
			d, ok = r.devices[bare]
		}
		if !ok {
			return nil
		}
	}
	if d.Password == password {
		return nil
	}
	d.Password = password

	return r.saveLocked()
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// List returns all known devices in map order.
func (r *Registry) List() []RegisteredDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]RegisteredDevice, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d)
	}
	return devices
}

// saveLocked writes the state file. Callers must hold the write lock.
// The write goes through a temp file so a crash mid-write cannot leave
// a truncated registry.
func (r *Registry) saveLocked() error {
	if r.path == "" {
		return nil
	}

	file := registryFile{Devices: make([]RegisteredDevice, 0, len(r.devices))}
	for _, d := range r.devices {
		file.Devices = append(file.Devices, *d)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing registry file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing registry file: %w", err)
	}

	return nil
}
