package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ufitech/infoscreen-bridge/internal/customer"
	"github.com/ufitech/infoscreen-bridge/internal/device"
	"github.com/ufitech/infoscreen-bridge/internal/history"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/config"
	"github.com/ufitech/infoscreen-bridge/internal/infrastructure/logging"
)

// Cooldown condition names. Keys into the Deduper are scoped per device,
// so these never collide across devices.
const (
	condTempCritical = "temp_critical"
	condTempHigh     = "temp_high"
	condMemCritical  = "mem_critical"
	condMemHigh      = "mem_high"
	condSummary      = "telemetry_summary"
)

// TelemetrySink receives derived health samples. Satisfied by the
// InfluxDB client; nil disables the sink.
type TelemetrySink interface {
	WriteHealthSample(deviceID string, tempC, loadAvg, memUsedPct float64)
}

// Reconciler owns the authoritative device record. It applies inbound
// status, telemetry and event messages as idempotent merges, appends the
// immutable history, and narrates noteworthy transitions into the device
// log through the Deduper.
type Reconciler struct {
	devices   device.Repository
	history   history.Repository
	customers customer.Repository
	dedup     *Deduper
	sink      TelemetrySink
	cfg       config.BridgeConfig
	log       *logging.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewReconciler creates a Reconciler. sink may be nil.
func NewReconciler(
	devices device.Repository,
	hist history.Repository,
	customers customer.Repository,
	dedup *Deduper,
	sink TelemetrySink,
	cfg config.BridgeConfig,
	log *logging.Logger,
) *Reconciler {
	return &Reconciler{
		devices:   devices,
		history:   hist,
		customers: customers,
		dedup:     dedup,
		sink:      sink,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// ApplyStatus merges a status report into the device record.
//
// Merge rules: each of status/ip/mac/url/name takes the incoming value
// only when present in the payload. A pending report for an already
// approved device is discarded whole, so a stale or spoofed pending
// message can never un-approve a device. Pending reports force approval
// false; otherwise approval follows the payload when present. last_seen
// always refreshes.
func (r *Reconciler) ApplyStatus(ctx context.Context, ref device.Ref, pending bool, payload map[string]any) error {
	dev, err := r.devices.GetByID(ctx, ref.ID)
	isNew := errors.Is(err, device.ErrDeviceNotFound)
	if err != nil && !isNew {
		return fmt.Errorf("loading device %s: %w", ref.ID, err)
	}
	if isNew {
		dev = &device.Device{ID: ref.ID, Status: device.StatusUnknown}
	}

	if pending && dev.Approved {
		return nil
	}

	wasNew := isNew || dev.Status == device.StatusUnknown
	prevStatus := dev.Status

	update := device.Update{
		IP:             stringField(payload, "ip"),
		MAC:            stringField(payload, "mac"),
		URL:            stringField(payload, "url"),
		Name:           stringField(payload, "name"),
		Model:          stringField(payload, "model"),
		AndroidVersion: stringField(payload, "android_version"),
	}
	if s := stringField(payload, "status"); s != nil {
		status := device.Status(*s)
		update.Status = &status
	}
	now := r.now().UTC()
	update.LastSeen = &now
	dev.Merge(update)

	if pending {
		dev.Approved = false
	} else if approved, ok := payload["approved"].(bool); ok {
		dev.Approved = approved
	}

	if isNew {
		err = r.devices.Create(ctx, dev)
	} else {
		err = r.devices.Update(ctx, dev)
	}
	if err != nil {
		return fmt.Errorf("storing device %s: %w", ref.ID, err)
	}

	// Exactly one log entry per report, and none for steady-state repeats.
	switch {
	case pending:
		r.appendLog(ctx, &history.LogEntry{
			DeviceID: ref.ID,
			Level:    history.LevelWarning,
			Category: history.CategorySystem,
			Message:  "Enhed afventer godkendelse",
		})
	case wasNew:
		r.appendLog(ctx, &history.LogEntry{
			DeviceID: ref.ID,
			Level:    history.LevelSuccess,
			Category: history.CategoryConnection,
			Message:  "Enhed tilsluttet",
			Details:  map[string]any{"ip": dev.IP},
		})
	case dev.Status != prevStatus:
		level := history.LevelWarning
		if dev.Status == device.StatusOnline {
			level = history.LevelSuccess
		}
		r.appendLog(ctx, &history.LogEntry{
			DeviceID: ref.ID,
			Level:    level,
			Category: history.CategoryConnection,
			Message:  fmt.Sprintf("Status ændret: %s -> %s", prevStatus, dev.Status),
		})
	}

	return nil
}

// ApplyFullyDeviceInfo treats a Fully Kiosk deviceInfo broadcast as a
// status report, translating its native field names.
func (r *Reconciler) ApplyFullyDeviceInfo(ctx context.Context, ref device.Ref, payload map[string]any) error {
	translated := map[string]any{"status": "online"}
	copyField(payload, "ip4", translated, "ip")
	copyField(payload, "mac", translated, "mac")
	copyField(payload, "deviceName", translated, "name")
	copyField(payload, "deviceModel", translated, "model")
	copyField(payload, "androidVersion", translated, "android_version")
	copyField(payload, "currentPage", translated, "url")

	return r.ApplyStatus(ctx, ref, false, translated)
}

// ApplyTelemetry appends the sample and derives graded health logs.
//
// Thresholds and intervals come from config. Threshold breaches and the
// hourly summary both go through the Deduper so sustained conditions do
// not flood the device log. Unknown devices are dropped silently; the
// next status report will register them.
func (r *Reconciler) ApplyTelemetry(ctx context.Context, ref device.Ref, payload map[string]any) error {
	if _, err := r.devices.GetByID(ctx, ref.ID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return nil
		}
		return fmt.Errorf("loading device %s: %w", ref.ID, err)
	}

	// A device posting telemetry is alive even when its periodic status
	// report has not arrived yet.
	if err := r.devices.UpdateStatus(ctx, ref.ID, device.StatusOnline, r.now().UTC()); err != nil {
		return fmt.Errorf("refreshing last seen for %s: %w", ref.ID, err)
	}

	ts := r.now().UTC()
	if ms, ok := floatField(payload, "ts"); ok && ms > 0 {
		ts = time.UnixMilli(int64(ms)).UTC()
	}

	if err := r.history.RecordTelemetry(ctx, ref.ID, ts, payload); err != nil {
		return fmt.Errorf("recording telemetry for %s: %w", ref.ID, err)
	}

	temp, hasTemp := floatField(payload, "temp_c")
	memPct, hasMem := memoryUsedPct(payload)
	load, _ := loadAverage(payload)

	if r.sink != nil && (hasTemp || hasMem) {
		r.sink.WriteHealthSample(ref.ID, temp, load, memPct)
	}

	cooldown := r.cfg.AlertCooldown()
	if hasTemp {
		switch {
		case temp >= r.cfg.TempCriticalC:
			if r.dedup.ShouldEmit(ref.ID, condTempCritical, cooldown) {
				r.appendLog(ctx, &history.LogEntry{
					DeviceID: ref.ID,
					Level:    history.LevelCritical,
					Category: history.CategoryAlert,
					Message:  fmt.Sprintf("Kritisk temperatur: %.1f°C", temp),
					Details:  map[string]any{"temp_c": temp},
				})
			}
		case temp >= r.cfg.TempHighC:
			if r.dedup.ShouldEmit(ref.ID, condTempHigh, cooldown) {
				r.appendLog(ctx, &history.LogEntry{
					DeviceID: ref.ID,
					Level:    history.LevelWarning,
					Category: history.CategoryAlert,
					Message:  fmt.Sprintf("Høj temperatur: %.1f°C", temp),
					Details:  map[string]any{"temp_c": temp},
				})
			}
		}
	}

	if hasMem {
		switch {
		case memPct >= r.cfg.MemCriticalPct:
			if r.dedup.ShouldEmit(ref.ID, condMemCritical, cooldown) {
				r.appendLog(ctx, &history.LogEntry{
					DeviceID: ref.ID,
					Level:    history.LevelCritical,
					Category: history.CategoryAlert,
					Message:  fmt.Sprintf("Kritisk hukommelsesforbrug: %.1f%%", memPct),
					Details:  map[string]any{"mem_used_pct": memPct},
				})
			}
		case memPct >= r.cfg.MemHighPct:
			if r.dedup.ShouldEmit(ref.ID, condMemHigh, cooldown) {
				r.appendLog(ctx, &history.LogEntry{
					DeviceID: ref.ID,
					Level:    history.LevelWarning,
					Category: history.CategoryAlert,
					Message:  fmt.Sprintf("Højt hukommelsesforbrug: %.1f%%", memPct),
					Details:  map[string]any{"mem_used_pct": memPct},
				})
			}
		}
	}

	if r.dedup.ShouldEmit(ref.ID, condSummary, r.cfg.SummaryInterval()) {
		details := map[string]any{}
		if hasTemp {
			details["temp_c"] = temp
		}
		if hasMem {
			details["mem_used_pct"] = memPct
		}
		if up, ok := floatField(payload, "uptime_seconds"); ok {
			details["uptime_seconds"] = up
		}
		r.appendLog(ctx, &history.LogEntry{
			DeviceID: ref.ID,
			Level:    history.LevelInfo,
			Category: history.CategoryAlert,
			Message:  "Telemetri-oversigt",
			Details:  details,
		})
	}

	return nil
}

// ApplyEvent appends the event and handles kind-specific side effects:
// wifi scans and screenshots get an informational log, geolocation fixes
// update the device's location row.
func (r *Reconciler) ApplyEvent(ctx context.Context, ref device.Ref, kind string, payload map[string]any) error {
	if _, err := r.devices.GetByID(ctx, ref.ID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return nil
		}
		return fmt.Errorf("loading device %s: %w", ref.ID, err)
	}

	// The generic events topic carries its kind in the payload.
	if kind == "events" {
		kind = "event"
		if t := stringField(payload, "type"); t != nil && *t != "" {
			kind = *t
		}
	}

	ts := r.now().UTC()
	if ms, ok := floatField(payload, "ts"); ok && ms > 0 {
		ts = time.UnixMilli(int64(ms)).UTC()
	}

	if err := r.history.RecordEvent(ctx, ref.ID, kind, ts, payload); err != nil {
		return fmt.Errorf("recording event for %s: %w", ref.ID, err)
	}

	switch kind {
	case "wifi-scan":
		details := map[string]any{}
		if networks, ok := payload["networks"].([]any); ok {
			details["networks"] = len(networks)
		}
		r.appendLog(ctx, &history.LogEntry{
			DeviceID: ref.ID,
			Level:    history.LevelInfo,
			Category: history.CategorySystem,
			Message:  "WiFi-scanning modtaget",
			Details:  details,
		})
	case "screenshot":
		r.appendLog(ctx, &history.LogEntry{
			DeviceID: ref.ID,
			Level:    history.LevelInfo,
			Category: history.CategorySystem,
			Message:  "Skærmbillede modtaget",
		})
	case "geolocation":
		if err := r.applyGeolocation(ctx, ref, payload); err != nil {
			return err
		}
	}

	return nil
}

// applyGeolocation upserts the device's location row.
func (r *Reconciler) applyGeolocation(ctx context.Context, ref device.Ref, payload map[string]any) error {
	lat, hasLat := floatField(payload, "latitude")
	lon, hasLon := floatField(payload, "longitude")
	if !hasLat || !hasLon {
		return nil
	}

	loc := &customer.Location{
		DeviceID:  ref.ID,
		Latitude:  lat,
		Longitude: lon,
		UpdatedAt: r.now().UTC(),
	}
	if acc, ok := floatField(payload, "accuracy"); ok {
		loc.Accuracy = acc
	}
	if p := stringField(payload, "provider"); p != nil {
		loc.Provider = *p
	}
	loc.Address = synthesizeAddress(payload)

	if err := r.customers.UpsertLocation(ctx, loc); err != nil {
		return fmt.Errorf("upserting location for %s: %w", ref.ID, err)
	}

	return nil
}

// HandleAck closes the command loop: the relay's result is recorded as
// an event and narrated into the device log. Acks for devices no longer
// in the catalogue are dropped.
func (r *Reconciler) HandleAck(ctx context.Context, ref device.Ref, command string, payload map[string]any) error {
	if _, err := r.devices.GetByID(ctx, ref.ID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return nil
		}
		return fmt.Errorf("loading device %s: %w", ref.ID, err)
	}

	ts := r.now().UTC()
	if secs, ok := floatField(payload, "timestamp"); ok && secs > 0 {
		ts = time.Unix(int64(secs), 0).UTC()
	}

	if err := r.history.RecordEvent(ctx, ref.ID, "command-ack", ts, payload); err != nil {
		return fmt.Errorf("recording ack for %s: %w", ref.ID, err)
	}

	status := "Unknown"
	statusText := ""
	if result, ok := payload["result"].(map[string]any); ok {
		if s := stringField(result, "status"); s != nil {
			status = *s
		}
		if s := stringField(result, "statustext"); s != nil {
			statusText = *s
		}
	}

	level := history.LevelSuccess
	message := fmt.Sprintf("Kommando bekræftet: %s", CommandName(command))
	if status != "OK" {
		level = history.LevelWarning
		message = fmt.Sprintf("Kommando fejlede: %s", CommandName(command))
	}

	r.appendLog(ctx, &history.LogEntry{
		DeviceID: ref.ID,
		Level:    level,
		Category: history.CategoryCommand,
		Message:  message,
		Details:  map[string]any{"command": command, "status": status, "statustext": statusText},
	})

	return nil
}

// appendLog writes a device log entry; failures are logged and swallowed
// so narration never breaks message processing.
func (r *Reconciler) appendLog(ctx context.Context, entry *history.LogEntry) {
	if err := r.history.AppendLog(ctx, entry); err != nil {
		r.log.Error("failed to append device log",
			"device_id", entry.DeviceID,
			"message", entry.Message,
			"error", err,
		)
	}
}

// stringField returns a pointer to the payload's string value for key,
// or nil when absent or not a string.
func stringField(payload map[string]any, key string) *string {
	if v, ok := payload[key].(string); ok {
		return &v
	}
	return nil
}

// floatField returns the payload's numeric value for key.
func floatField(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// copyField copies src[from] to dst[to] when present and non-empty.
func copyField(src map[string]any, from string, dst map[string]any, to string) {
	if v, ok := src[from].(string); ok && v != "" {
		dst[to] = v
	}
}

// memoryUsedPct computes (total-available)/total*100 from the sample's
// mem_total_kb and mem_available_kb fields.
func memoryUsedPct(payload map[string]any) (float64, bool) {
	total, okTotal := floatField(payload, "mem_total_kb")
	available, okAvail := floatField(payload, "mem_available_kb")
	if !okTotal || !okAvail || total <= 0 {
		return 0, false
	}
	return (total - available) / total * 100, true
}

// loadAverage extracts the one minute load average. Samples carry either
// a bare number or the three value load list.
func loadAverage(payload map[string]any) (float64, bool) {
	if v, ok := floatField(payload, "load"); ok {
		return v, true
	}
	if list, ok := payload["load"].([]any); ok && len(list) > 0 {
		switch v := list[0].(type) {
		case float64:
			return v, true
		case string:
			// The Pi agent formats the load list as strings.
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// synthesizeAddress joins city/region/country into one display string.
func synthesizeAddress(payload map[string]any) string {
	var parts []string
	for _, key := range []string{"city", "region", "country"} {
		if v, ok := payload[key].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}
