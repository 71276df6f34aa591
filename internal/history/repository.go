package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// Repository defines persistence for device telemetry, events and logs.
type Repository interface {
	// RecordTelemetry appends a telemetry sample for a device.
	RecordTelemetry(ctx context.Context, deviceID string, ts time.Time, payload map[string]any) error

	// ListTelemetry returns recent telemetry for a device, newest first.
	ListTelemetry(ctx context.Context, deviceID string, limit int) ([]TelemetrySample, error)

	// RecordEvent appends an auxiliary event for a device.
	RecordEvent(ctx context.Context, deviceID, eventType string, ts time.Time, payload map[string]any) error

	// ListEvents returns recent events for a device, newest first.
	ListEvents(ctx context.Context, deviceID string, limit int) ([]Event, error)

	// AppendLog appends a device log entry. The entry's timestamp is set
	// to now when zero.
	AppendLog(ctx context.Context, entry *LogEntry) error

	// ListLogs returns recent log entries for a device, newest first.
	ListLogs(ctx context.Context, deviceID string, limit int) ([]LogEntry, error)

	// FilterLogs returns log entries matching the filter, newest first.
	FilterLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error)

	// PurgeLogs deletes log entries older than the given duration and
	// returns the number of rows removed.
	PurgeLogs(ctx context.Context, olderThan time.Duration) (int64, error)

	// PurgeTelemetry deletes telemetry samples and events older than the
	// given duration and returns the number of rows removed.
	PurgeTelemetry(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordTelemetry appends a telemetry sample for a device.
func (r *SQLiteRepository) RecordTelemetry(ctx context.Context, deviceID string, ts time.Time, payload map[string]any) error {
	if deviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if payload == nil {
		payload = map[string]any{}
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling telemetry payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO telemetry (device_id, ts, payload) VALUES (?, ?, ?)",
		deviceID,
		ts.UTC().Format(time.RFC3339),
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting telemetry: %w", err)
	}

	return nil
}

// ListTelemetry returns recent telemetry for a device, newest first.
func (r *SQLiteRepository) ListTelemetry(ctx context.Context, deviceID string, limit int) ([]TelemetrySample, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, ts, payload
		 FROM telemetry
		 WHERE device_id = ?
		 ORDER BY ts DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry: %w", err)
	}
	defer rows.Close()

	samples := make([]TelemetrySample, 0, limit)
	for rows.Next() {
		var sample TelemetrySample
		var ts, payloadJSON string

		if err := rows.Scan(&sample.ID, &sample.DeviceID, &ts, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scanning telemetry: %w", err)
		}

		sample.Timestamp, err = parseTimestamp(ts)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(payloadJSON), &sample.Payload); err != nil {
			return nil, fmt.Errorf("unmarshalling telemetry payload: %w", err)
		}

		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry: %w", err)
	}

	return samples, nil
}

// RecordEvent appends an auxiliary event for a device.
func (r *SQLiteRepository) RecordEvent(ctx context.Context, deviceID, eventType string, ts time.Time, payload map[string]any) error {
	if deviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if eventType == "" {
		return fmt.Errorf("event type is required")
	}
	if payload == nil {
		payload = map[string]any{}
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling event payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO events (device_id, ts, type, payload) VALUES (?, ?, ?, ?)",
		deviceID,
		ts.UTC().Format(time.RFC3339),
		eventType,
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

// ListEvents returns recent events for a device, newest first.
func (r *SQLiteRepository) ListEvents(ctx context.Context, deviceID string, limit int) ([]Event, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, ts, type, payload
		 FROM events
		 WHERE device_id = ?
		 ORDER BY ts DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var event Event
		var ts, payloadJSON string

		if err := rows.Scan(&event.ID, &event.DeviceID, &ts, &event.Type, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		event.Timestamp, err = parseTimestamp(ts)
		if err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(payloadJSON), &event.Payload); err != nil {
			return nil, fmt.Errorf("unmarshalling event payload: %w", err)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}

// AppendLog appends a device log entry.
func (r *SQLiteRepository) AppendLog(ctx context.Context, entry *LogEntry) error {
	if entry.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if entry.Message == "" {
		return fmt.Errorf("message is required")
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}
	if entry.Category == "" {
		entry.Category = CategorySystem
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var detailsJSON sql.NullString
	if entry.Details != nil {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshalling log details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO device_logs (device_id, ts, level, category, message, details)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.DeviceID,
		entry.Timestamp.UTC().Format(time.RFC3339),
		string(entry.Level),
		string(entry.Category),
		entry.Message,
		detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting device log: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}

	return nil
}

// ListLogs returns recent log entries for a device, newest first.
func (r *SQLiteRepository) ListLogs(ctx context.Context, deviceID string, limit int) ([]LogEntry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	return r.FilterLogs(ctx, LogFilter{DeviceID: deviceID, Limit: limit})
}

// LogFilter narrows a log query. Zero-valued fields match everything.
type LogFilter struct {
	// DeviceID restricts results to a single device.
	DeviceID string

	// Level restricts results to a single severity.
	Level Level

	// Category restricts results to a single category.
	Category Category

	// Since restricts results to entries newer than now minus this duration.
	Since time.Duration

	// Limit caps the number of entries returned.
	Limit int
}

// FilterLogs returns log entries matching the filter, newest first.
func (r *SQLiteRepository) FilterLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	query := `SELECT id, device_id, ts, level, category, message, details
		 FROM device_logs
		 WHERE 1=1`
	var args []any

	if filter.DeviceID != "" {
		query += " AND device_id = ?"
		args = append(args, filter.DeviceID)
	}
	if filter.Level != "" {
		query += " AND level = ?"
		args = append(args, string(filter.Level))
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, string(filter.Category))
	}
	if filter.Since > 0 {
		cutoff := time.Now().UTC().Add(-filter.Since).Format(time.RFC3339)
		query += " AND ts >= ?"
		args = append(args, cutoff)
	}

	query += " ORDER BY ts DESC, id DESC LIMIT ?"
	args = append(args, clampLimit(filter.Limit))

	return r.queryLogs(ctx, query, args...)
}

// PurgeLogs deletes log entries older than the given duration.
func (r *SQLiteRepository) PurgeLogs(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, "DELETE FROM device_logs WHERE ts < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting device logs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// PurgeTelemetry deletes telemetry samples and events older than the given duration.
func (r *SQLiteRepository) PurgeTelemetry(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)

	var total int64
	for _, table := range []string{"telemetry", "events"} {
		result, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE ts < ?", cutoff)
		if err != nil {
			return total, fmt.Errorf("deleting from %s: %w", table, err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("checking rows affected: %w", err)
		}
		total += rowsAffected
	}

	return total, nil
}

// queryLogs executes a log query and scans the results.
func (r *SQLiteRepository) queryLogs(ctx context.Context, query string, args ...any) ([]LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying device logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var entry LogEntry
		var ts, level, category string
		var detailsJSON sql.NullString

		if err := rows.Scan(&entry.ID, &entry.DeviceID, &ts, &level, &category, &entry.Message, &detailsJSON); err != nil {
			return nil, fmt.Errorf("scanning device log: %w", err)
		}

		entry.Level = Level(level)
		entry.Category = Category(category)

		entry.Timestamp, err = parseTimestamp(ts)
		if err != nil {
			return nil, err
		}

		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshalling log details: %w", err)
			}
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device logs: %w", err)
	}

	return entries, nil
}

// clampLimit applies the default and maximum query limits.
func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

// parseTimestamp parses a timestamp stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("ts is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing ts: %w", err)
}
