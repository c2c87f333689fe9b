package sprinkler

import "time"

// Status is the retained device status published under
// sprinkler/{deviceID}/status.
type Status string

// Device status values.
const (
	// StatusInit is published when a device registers and receives its
	// configuration.
	StatusInit Status = "INIT"

	// StatusAlive is published when a device reports itself online.
	StatusAlive Status = "ALIVE"

	// StatusDead is published when a device is considered unreachable.
	StatusDead Status = "DEAD"

	// StatusWateringAuto is published while a schedule-driven watering
	// run is in progress.
	StatusWateringAuto Status = "WATERING.AUTO"

	// StatusWateringMan is published while an operator-initiated
	// watering run is in progress.
	StatusWateringMan Status = "WATERING.MAN"
)

// TriggerEvent is a watering state transition announced under
// sprinkler/{deviceID}/trigger.
type TriggerEvent string

// Trigger transition values.
const (
	TriggerAutoOn  TriggerEvent = "AUTO.ON"
	TriggerAutoOff TriggerEvent = "AUTO.OFF"
	TriggerManOn   TriggerEvent = "MAN.ON"
	TriggerManOff  TriggerEvent = "MAN.OFF"
)

// DeviceConfig is a device's persisted watering configuration.
// The store owns it; the scheduler holds a derived in-memory copy that
// is invalidated and rebuilt whenever a new value arrives.
type DeviceConfig struct {
	DeviceID   string     `json:"device_id"`
	Cron       string     `json:"cron"`
	DurationMs int64      `json:"duration_ms"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// WateringLog is one append-only watering event record.
type WateringLog struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	DurationMs int64     `json:"duration_ms"`
	Enabled    bool      `json:"enabled"`
	Automated  bool      `json:"automated"`
	Reason     string    `json:"reason,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// JobState is the per-device scheduler state.
type JobState string

// Scheduler states. The cycle is
// UNCONFIGURED → ARMED → (FIRING → COOLDOWN → ARMED)*.
const (
	StateUnconfigured JobState = "UNCONFIGURED"
	StateArmed        JobState = "ARMED"
	StateFiring       JobState = "FIRING"
	StateCooldown     JobState = "COOLDOWN"
)
