package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ufitech/infoscreen-bridge/internal/history"
)

// queryLimit parses the limit query parameter; zero means the
// repository default.
func queryLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func (s *Server) handleDeviceTelemetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	samples, err := s.history.ListTelemetry(r.Context(), id, queryLimit(r))
	if err != nil {
		s.logger.Error("failed to list telemetry", "device_id", id, "error", err)
		writeInternalError(w, "failed to list telemetry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"telemetry": samples,
		"count":     len(samples),
	})
}

func (s *Server) handleDeviceEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	events, err := s.history.ListEvents(r.Context(), id, queryLimit(r))
	if err != nil {
		s.logger.Error("failed to list events", "device_id", id, "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"events":    events,
		"count":     len(events),
	})
}

// logFilterFromQuery parses the level, category and hours query
// parameters into a log filter.
func logFilterFromQuery(r *http.Request) (history.LogFilter, error) {
	filter := history.LogFilter{
		Level:    history.Level(r.URL.Query().Get("level")),
		Category: history.Category(r.URL.Query().Get("category")),
		Limit:    queryLimit(r),
	}

	if raw := r.URL.Query().Get("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return filter, fmt.Errorf("hours must be a positive integer")
		}
		filter.Since = time.Duration(hours) * time.Hour
	}

	return filter, nil
}

func (s *Server) handleDeviceLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	filter, err := logFilterFromQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	filter.DeviceID = id

	logs, err := s.history.FilterLogs(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list logs", "device_id", id, "error", err)
		writeInternalError(w, "failed to list logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"logs":      logs,
		"count":     len(logs),
	})
}

func (s *Server) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := logFilterFromQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	logs, err := s.history.FilterLogs(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list recent logs", "error", err)
		writeInternalError(w, "failed to list logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

// retentionFromQuery parses the older_than_days query parameter.
func retentionFromQuery(r *http.Request) (time.Duration, bool) {
	days, err := strconv.Atoi(r.URL.Query().Get("older_than_days"))
	if err != nil || days <= 0 {
		return 0, false
	}
	return time.Duration(days) * 24 * time.Hour, true
}

func (s *Server) handlePurgeLogs(w http.ResponseWriter, r *http.Request) {
	retention, ok := retentionFromQuery(r)
	if !ok {
		writeBadRequest(w, "older_than_days must be a positive integer")
		return
	}

	deleted, err := s.history.PurgeLogs(r.Context(), retention)
	if err != nil {
		s.logger.Error("failed to purge logs", "error", err)
		writeInternalError(w, "failed to purge logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (s *Server) handlePurgeTelemetry(w http.ResponseWriter, r *http.Request) {
	retention, ok := retentionFromQuery(r)
	if !ok {
		writeBadRequest(w, "older_than_days must be a positive integer")
		return
	}

	deleted, err := s.history.PurgeTelemetry(r.Context(), retention)
	if err != nil {
		s.logger.Error("failed to purge telemetry", "error", err)
		writeInternalError(w, "failed to purge telemetry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}
