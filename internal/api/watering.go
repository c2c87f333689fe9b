package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/verdantlabs/sprinkler-core/internal/sprinkler"
)

// scheduleRequest is the request body for POST /watering/schedule.
type scheduleRequest struct {
	DeviceID   string `json:"device_id"`
	Cron       string `json:"cron"`
	DurationMs int64  `json:"duration_ms"`
}

// handleSchedule validates and installs a new watering schedule.
//
// The scheduler re-arms first; a rejected cron expression or duration
// leaves the previous schedule, timer, and stored config untouched.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	err := s.router.ApplySchedule(r.Context(), req.DeviceID, req.Cron, req.DurationMs)
	switch {
	case errors.Is(err, sprinkler.ErrInvalidCronExpression),
		errors.Is(err, sprinkler.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	case errors.Is(err, sprinkler.ErrPublishFailed):
		// Persisted and armed; the retained config topics resync the
		// device on its next init.
		s.logger.Warn("schedule push incomplete", "device_id", req.DeviceID, "error", err)
	case err != nil:
		s.logger.Error("schedule update failed", "device_id", req.DeviceID, "error", err)
		writeInternalError(w, "failed to update schedule")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "scheduled",
		"device_id":   req.DeviceID,
		"cron":        req.Cron,
		"duration_ms": req.DurationMs,
	})
}

// triggerRequest is the request body for POST /watering/trigger.
type triggerRequest struct {
	DeviceID string `json:"device_id"`
	On       bool   `json:"on"`
}

// handleTrigger switches manual valve control for a device.
//
// Manual ON opens the valve and suppresses automatic firings until the
// override is cleared with manual OFF.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}

	if err := s.scheduler.SetManualOverride(req.DeviceID, req.On); err != nil {
		// Command publish failed but the override state is set; report
		// the degraded outcome rather than pretending nothing happened.
		s.logger.Warn("manual trigger publish incomplete", "device_id", req.DeviceID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "triggered",
		"device_id": req.DeviceID,
		"on":        req.On,
	})
}
