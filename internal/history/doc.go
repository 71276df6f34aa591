// Package history stores the time-ordered record of device activity.
//
// Three append-only tables back it: telemetry (health samples with their
// full payload), events (wifi scans, screenshot notices, geolocation
// fixes) and device_logs (the human-facing activity log shown in the
// admin views). Device logs intentionally carry no foreign key so that
// pending and since-deleted devices keep their trail; the device
// repository removes them explicitly when a device is deleted.
//
// Queries return newest-first slices with a clamped limit. Retention is
// handled by PurgeLogs and PurgeTelemetry, driven by the admin API.
package history
