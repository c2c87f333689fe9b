package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/verdantlabs/sprinkler-core/internal/sprinkler"
)

// defaultLogLimit bounds a logs query when no limit parameter is given.
const defaultLogLimit = 50

// handleListDevices returns every registered device configuration.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	configs, err := s.store.ListDeviceConfigs(r.Context())
	if err != nil {
		s.logger.Error("device list failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": configs,
		"count":   len(configs),
	})
}

// handleConnectedDevices returns the identities currently holding a
// device-class broker session.
func (s *Server) handleConnectedDevices(w http.ResponseWriter, _ *http.Request) {
	ids := s.sessions.DeviceIdentities()

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": ids,
		"count":   len(ids),
	})
}

// initDeviceRequest is the request body for POST /devices/init.
type initDeviceRequest struct {
	DeviceID string `json:"device_id"`
}

// handleInitDevice pushes the stored (or default) configuration down to
// a device, as if the device had announced itself on the init topic.
func (s *Server) handleInitDevice(w http.ResponseWriter, r *http.Request) {
	var req initDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	if err := s.router.InitDevice(req.DeviceID); err != nil {
		s.logger.Error("device init failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to initialize device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "initialized",
		"device_id": req.DeviceID,
	})
}

// handleDeviceOTA commands a device to fetch and flash the current
// firmware image from the firmware endpoint.
func (s *Server) handleDeviceOTA(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	if err := s.router.RequestOTA(deviceID); err != nil {
		s.logger.Error("ota request failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to send ota command")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ota_requested",
		"device_id": deviceID,
	})
}

// handleDeviceRestart commands a device to reboot.
func (s *Server) handleDeviceRestart(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	if err := s.router.RequestRestart(deviceID); err != nil {
		s.logger.Error("restart request failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to send restart command")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "restart_requested",
		"device_id": deviceID,
	})
}

// handleFirmware serves the firmware image devices flash during OTA
// updates. Unauthenticated: devices hold broker credentials, not API
// tokens. 404 until a firmware path is configured and present.
func (s *Server) handleFirmware(w http.ResponseWriter, r *http.Request) {
	path := s.cfg.FirmwarePath
	if path == "" {
		writeNotFound(w, "no firmware available")
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.logger.Warn("firmware image missing", "path", path, "error", err)
		writeNotFound(w, "no firmware available")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}

// handleDeviceLogs returns the most recent watering log entries for a
// device, newest first.
//
// Query parameters:
//   - limit: maximum entries to return (default 50)
func (s *Server) handleDeviceLogs(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	// A device with config but no logs yet returns an empty list; a
	// device never seen at all returns 404.
	if _, err := s.store.GetDeviceConfig(r.Context(), deviceID); err != nil {
		if errors.Is(err, sprinkler.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("device lookup failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to look up device")
		return
	}

	logs, err := s.store.GetLogs(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Error("log query failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to query logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"logs":      logs,
		"count":     len(logs),
	})
}
