package bridge

import (
	"sync"
	"time"
)

// Deduper suppresses repeated emission of the same condition per device.
//
// Keys are (device id, condition name). State lives in memory only: a
// restart resets all cooldowns, which is accepted behaviour for a small
// fleet. The map is bounded by fleet size times condition count, so no
// eviction is needed.
type Deduper struct {
	mu       sync.Mutex
	lastEmit map[string]time.Time

	// now is replaceable in tests.
	now func() time.Time
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{
		lastEmit: make(map[string]time.Time),
		now:      time.Now,
	}
}

// ShouldEmit reports whether the condition may be emitted for the device
// and, if so, records the emission. A false return leaves the recorded
// timestamp untouched so a sustained condition fires again exactly one
// cooldown after its last emission.
func (d *Deduper) ShouldEmit(deviceID, condition string, cooldown time.Duration) bool {
	key := deviceID + "|" + condition

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.lastEmit[key]; ok && now.Sub(last) <= cooldown {
		return false
	}

	d.lastEmit[key] = now
	return true
}
