package sprinkler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/metrics"
)

// storeTimeout bounds log/config writes issued from timer callbacks.
const storeTimeout = 5 * time.Second

// Scheduler owns one active timed actuation job per device, derived
// from a schedule expression and a duration.
//
// Per device the cycle is UNCONFIGURED → ARMED → (FIRING → COOLDOWN →
// ARMED)*, with a parallel manual-override flag. While the override is
// active, automatic firings are logged and skipped, never queued.
//
// All schedule evaluation happens in the single time zone the scheduler
// was constructed with; per-device zones would make firings ambiguous
// across daylight-saving transitions.
//
// Per-device state is serialized on a per-job mutex: concurrent
// reconfiguration of the same device cannot interleave, while different
// devices proceed independently.
type Scheduler struct {
	cron   *cron.Cron
	pub    Publisher
	store  Repository
	logger Logger

	mu   sync.Mutex
	jobs map[string]*wateringJob
}

// wateringJob is the per-device derived entity backing one schedule.
// At most one live recurring registration exists per device; Rearm
// retires the previous one before installing a replacement.
type wateringJob struct {
	mu sync.Mutex

	deviceID   string
	cronExpr   string
	durationMs int64

	entryID  cron.EntryID
	hasEntry bool

	state   JobState
	manual  bool
	relayOn bool

	// stopTimer is the in-flight one-shot for the current firing, if
	// any. Rearm leaves it to complete; cancelling the timer without
	// switching the relay off would leave the valve stuck open.
	stopTimer *time.Timer
}

// JobInfo is a read-only snapshot of one device's scheduler state.
type JobInfo struct {
	DeviceID       string   `json:"device_id"`
	Cron           string   `json:"cron"`
	DurationMs     int64    `json:"duration_ms"`
	State          JobState `json:"state"`
	ManualOverride bool     `json:"manual_override"`
	RelayOn        bool     `json:"relay_on"`
}

// NewScheduler creates a scheduler evaluating schedules in loc.
func NewScheduler(loc *time.Location, pub Publisher, store Repository) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		pub:    pub,
		store:  store,
		logger: noopLogger{},
		jobs:   make(map[string]*wateringJob),
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// Start begins schedule evaluation.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts schedule evaluation. Running firings complete; their stop
// timers still fire so no valve is left open.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// LoadAll arms a job for every stored device configuration.
// Called once on startup.
func (s *Scheduler) LoadAll(ctx context.Context) error {
	configs, err := s.store.ListDeviceConfigs(ctx)
	if err != nil {
		return fmt.Errorf("loading device configs: %w", err)
	}

	for _, cfg := range configs {
		if err := s.Rearm(cfg.DeviceID, cfg.Cron, cfg.DurationMs); err != nil {
			s.logger.Error("arming stored schedule failed",
				"device_id", cfg.DeviceID,
				"cron", cfg.Cron,
				"error", err,
			)
		}
	}
	return nil
}

// Rearm installs a new schedule definition for the device.
//
// The expression is validated before any state mutation: a rejected
// schedule leaves the previous schedule and timer untouched. On
// success the prior recurring registration is cancelled first, so at
// most one exists per device at any instant. An in-flight duration
// timer is deliberately left to complete.
func (s *Scheduler) Rearm(deviceID, cronExpr string, durationMs int64) error {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, cronExpr, err)
	}
	if durationMs <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, durationMs)
	}

	j := s.job(deviceID)
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.hasEntry {
		s.cron.Remove(j.entryID)
		j.hasEntry = false
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() { s.fire(deviceID) })
	if err != nil {
		// Unreachable after ParseStandard succeeded, but never leave a
		// device half-armed.
		j.state = StateUnconfigured
		return fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, cronExpr, err)
	}

	j.entryID = entryID
	j.hasEntry = true
	j.cronExpr = cronExpr
	j.durationMs = durationMs
	if j.state == StateUnconfigured {
		j.state = StateArmed
	}

	s.logger.Info("schedule armed",
		"device_id", deviceID,
		"cron", cronExpr,
		"duration_ms", durationMs,
	)
	return nil
}

// SetManualOverride switches operator control for the device.
//
// Turning the override on opens the valve immediately and suppresses
// automatic firings until it is cleared. Turning it off closes the
// valve and returns control to the schedule.
func (s *Scheduler) SetManualOverride(deviceID string, on bool) error {
	j := s.job(deviceID)
	j.mu.Lock()
	defer j.mu.Unlock()

	j.manual = on
	j.relayOn = on

	if on {
		metrics.WateringFirings.WithLabelValues("manual").Inc()
	}

	batch := NewBatch(s.pub).SetLogger(s.logger)
	if on {
		batch.Trigger(deviceID, true).
			AnnounceTrigger(deviceID, TriggerManOn).
			SetStatus(deviceID, StatusWateringMan)
	} else {
		batch.Trigger(deviceID, false).
			AnnounceTrigger(deviceID, TriggerManOff).
			SetStatus(deviceID, StatusAlive)
	}
	err := batch.Publish()

	s.appendLog(&WateringLog{
		DeviceID:   deviceID,
		DurationMs: j.durationMs,
		Enabled:    on,
		Automated:  false,
		Reason:     "manual override",
	})

	s.logger.Info("manual override", "device_id", deviceID, "on", on)
	return err
}

// ManualActive reports whether the device is under manual control.
func (s *Scheduler) ManualActive(deviceID string) bool {
	j := s.job(deviceID)
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.manual
}

// State returns the device's current scheduler state.
func (s *Scheduler) State(deviceID string) JobState {
	j := s.job(deviceID)
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// ObserveReport folds a device's own on/off report into the relay
// bookkeeping. Reports do not drive command publishes; they only keep
// the mirror honest when a device is toggled out of band.
func (s *Scheduler) ObserveReport(deviceID string, on bool) {
	j := s.job(deviceID)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.relayOn = on
}

// Jobs returns a snapshot of every known job.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	jobs := make([]*wateringJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	infos := make([]JobInfo, 0, len(jobs))
	for _, j := range jobs {
		j.mu.Lock()
		infos = append(infos, JobInfo{
			DeviceID:       j.deviceID,
			Cron:           j.cronExpr,
			DurationMs:     j.durationMs,
			State:          j.state,
			ManualOverride: j.manual,
			RelayOn:        j.relayOn,
		})
		j.mu.Unlock()
	}
	return infos
}

// fire runs one schedule firing for the device.
func (s *Scheduler) fire(deviceID string) {
	j := s.job(deviceID)
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.state == StateFiring {
		// A cron period shorter than the watering duration would
		// otherwise overwrite the stop timer mid-cycle and finish twice.
		s.logger.Warn("automatic firing skipped, watering already in progress",
			"device_id", deviceID,
		)
		return
	}

	if j.manual {
		s.logger.Info("automatic firing skipped, manual override active",
			"device_id", deviceID,
		)
		s.appendLog(&WateringLog{
			DeviceID:   deviceID,
			DurationMs: j.durationMs,
			Enabled:    false,
			Automated:  true,
			Reason:     "skipped: manual override active",
		})
		return
	}

	j.state = StateFiring
	j.relayOn = true
	metrics.WateringFirings.WithLabelValues("auto").Inc()

	err := NewBatch(s.pub).SetLogger(s.logger).
		Trigger(deviceID, true).
		AnnounceTrigger(deviceID, TriggerAutoOn).
		SetStatus(deviceID, StatusWateringAuto).
		Publish()
	if err != nil {
		s.logger.Error("watering start publish failed", "device_id", deviceID, "error", err)
	}

	s.appendLog(&WateringLog{
		DeviceID:   deviceID,
		DurationMs: j.durationMs,
		Enabled:    true,
		Automated:  true,
	})

	duration := time.Duration(j.durationMs) * time.Millisecond
	j.stopTimer = time.AfterFunc(duration, func() { s.finish(deviceID) })

	s.logger.Info("watering started", "device_id", deviceID, "duration_ms", j.durationMs)
}

// finish ends the current firing when its duration timer elapses.
func (s *Scheduler) finish(deviceID string) {
	j := s.job(deviceID)
	j.mu.Lock()
	defer j.mu.Unlock()

	j.stopTimer = nil
	j.state = StateCooldown
	j.relayOn = false

	err := NewBatch(s.pub).SetLogger(s.logger).
		Trigger(deviceID, false).
		AnnounceTrigger(deviceID, TriggerAutoOff).
		SetStatus(deviceID, StatusAlive).
		Publish()
	if err != nil {
		s.logger.Error("watering stop publish failed", "device_id", deviceID, "error", err)
	}

	s.appendLog(&WateringLog{
		DeviceID:   deviceID,
		DurationMs: j.durationMs,
		Enabled:    false,
		Automated:  true,
	})

	j.state = StateArmed
	s.logger.Info("watering finished", "device_id", deviceID)
}

// job returns the device's job entry, creating it if absent.
func (s *Scheduler) job(deviceID string) *wateringJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[deviceID]
	if !ok {
		j = &wateringJob{deviceID: deviceID, state: StateUnconfigured}
		s.jobs[deviceID] = j
	}
	return j
}

// appendLog writes a watering log entry, logging failures rather than
// propagating them into timer callbacks.
func (s *Scheduler) appendLog(entry *WateringLog) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := s.store.AppendLog(ctx, entry); err != nil {
		s.logger.Error("appending watering log failed",
			"device_id", entry.DeviceID,
			"error", err,
		)
	}
}
