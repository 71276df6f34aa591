package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ufitech/infoscreen-bridge/internal/customer"
	"github.com/ufitech/infoscreen-bridge/internal/device"
)

// handleListDevices returns the device catalogue. The optional filter
// query parameter narrows the list to "pending" or "approved" devices.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var (
		devices []device.Device
		err     error
	)
	switch r.URL.Query().Get("filter") {
	case "pending":
		devices, err = s.devices.ListPending(r.Context())
	case "approved":
		devices, err = s.devices.ListApproved(r.Context())
	case "":
		devices, err = s.devices.List(r.Context())
	default:
		writeBadRequest(w, "filter must be pending or approved")
		return
	}
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to load device", "device_id", id, "error", err)
		writeInternalError(w, "failed to load device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device and its log history.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to delete device", "device_id", id, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleApproveDevice flips the stored approval flag and tells the
// device over the bus. A publish failure is not fatal: the flag is
// already persisted and the device picks it up on its next report.
func (s *Server) handleApproveDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.Approve(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to approve device", "device_id", id, "error", err)
		writeInternalError(w, "failed to approve device")
		return
	}

	if err := s.commands.Approve(r.Context(), id); err != nil {
		s.logger.Warn("approval persisted but publish failed", "device_id", id, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{"approved": id})
}

// commandRequest is the request body for POST /devices/{id}/command.
type commandRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Action == "" {
		writeBadRequest(w, "action is required")
		return
	}

	if err := s.commands.Send(r.Context(), id, req.Action, req.Params); err != nil {
		s.logger.Error("failed to send command",
			"device_id", id, "action", req.Action, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, "failed to publish command")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"action":    req.Action,
	})
}

// secretRequest is the request body for PUT /devices/{id}/secret.
type secretRequest struct {
	Secret string `json:"secret"`
}

func (s *Server) handleSetSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req secretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Secret == "" {
		writeBadRequest(w, "secret is required")
		return
	}

	if err := s.secrets.SetSecret(r.Context(), id, req.Secret); err != nil {
		s.logger.Error("failed to store secret", "device_id", id, "error", err)
		writeInternalError(w, "failed to store secret")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"device_id": id})
}

func (s *Server) handleDeviceLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	loc, err := s.customers.GetLocation(r.Context(), id)
	if err != nil {
		if errors.Is(err, customer.ErrLocationNotFound) {
			writeNotFound(w, "no location recorded for device")
			return
		}
		s.logger.Error("failed to load location", "device_id", id, "error", err)
		writeInternalError(w, "failed to load location")
		return
	}

	writeJSON(w, http.StatusOK, loc)
}
