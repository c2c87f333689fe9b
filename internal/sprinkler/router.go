package sprinkler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/metrics"
	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/mqtt"
	"github.com/verdantlabs/sprinkler-core/internal/topic"
)

// TelemetryWriter receives device telemetry for time-series storage.
// Implementations must not block the message path.
type TelemetryWriter interface {
	WriteHeartbeat(deviceID string, at time.Time)
	WriteWateringEvent(deviceID string, on, automated bool)
}

// noopTelemetry discards telemetry.
type noopTelemetry struct{}

func (noopTelemetry) WriteHeartbeat(string, time.Time)      {}
func (noopTelemetry) WriteWateringEvent(string, bool, bool) {}

// Defaults are the configuration values assigned to a device that
// registers without any stored configuration.
type Defaults struct {
	Cron       string
	DurationMs int64
}

// Router classifies accepted inbound publishes and dispatches them to
// config-update, log-append, or status-transition handlers.
//
// It implements the broker package's MessageSink and DisconnectSink.
// Loopback messages (empty sender, originated by the controller
// itself) are only logged, never acted upon, to avoid reaction loops.
type Router struct {
	store     Repository
	pub       Publisher
	scheduler *Scheduler
	telemetry TelemetryWriter
	defaults  Defaults
	topics    mqtt.Topics
	logger    Logger

	// configuredOnline tracks devices that completed registration and
	// reported ALIVE; it decides which retained topic to clear when the
	// device drops.
	mu               sync.Mutex
	configuredOnline map[string]bool
}

// NewRouter creates a router over the given collaborators.
func NewRouter(store Repository, pub Publisher, scheduler *Scheduler, defaults Defaults) *Router {
	return &Router{
		store:            store,
		pub:              pub,
		scheduler:        scheduler,
		telemetry:        noopTelemetry{},
		defaults:         defaults,
		logger:           noopLogger{},
		configuredOnline: make(map[string]bool),
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetTelemetry installs a telemetry writer. Nil restores the discard
// default.
func (r *Router) SetTelemetry(w TelemetryWriter) {
	if w == nil {
		r.telemetry = noopTelemetry{}
		return
	}
	r.telemetry = w
}

// Handle processes one accepted publish. An empty sender denotes the
// controller's own loopback publish.
func (r *Router) Handle(sender, rawTopic string, payload []byte) {
	if sender == "" {
		r.logger.Debug("loopback publish", "topic", rawTopic)
		return
	}

	t := topic.Parse(rawTopic)

	category := t.Category
	switch {
	case rawTopic == mqtt.TopicInit:
		category = "init"
	case category == "":
		category = "other"
	}
	metrics.MessagesRouted.WithLabelValues(category).Inc()

	switch {
	case rawTopic == mqtt.TopicInit:
		r.handleInit(string(payload))

	case t.Prefix == mqtt.TopicPrefixDevice && t.Category == "heartbeat":
		r.handleHeartbeat(t.DeviceID, payload)

	case t.Prefix == mqtt.TopicPrefixDevice && t.Category == "watering" && t.Action == "logs":
		r.handleWateringReport(t.DeviceID, string(payload))

	case t.Prefix == mqtt.TopicPrefixDevice && t.Category == "system" && t.Action == "logs":
		r.logger.Info("device log", "device_id", t.DeviceID, "message", string(payload))

	case t.Prefix == mqtt.TopicPrefixServer && t.Category == "status" && t.Action == "":
		r.handleStatus(t.DeviceID, Status(payload))

	case t.Prefix == mqtt.TopicPrefixServer && t.Category == "config":
		// 5-level topic: sprinkler/<id>/config/<key>. Re-split for the key.
		segments := topic.ParseToArray(rawTopic)
		if len(segments) >= 4 {
			r.handleConfigUpdate(t.DeviceID, segments[3], string(payload))
		}

	default:
		r.logger.Debug("unhandled topic", "sender", sender, "topic", rawTopic)
	}
}

// HandleDisconnect reacts to a session-closed event.
//
// A device that completed configuration gets its retained trigger topic
// cleared and a last-seen timestamp recorded; one that never did gets
// its retained status topic cleared instead. Never both. This prevents
// a stale "online" status lingering after an ungraceful drop.
//
// The device's scheduler job is deliberately left running: watering
// must complete even if the device drops mid-cycle, since cancelling
// the timer rather than the relay could leave the valve open.
func (r *Router) HandleDisconnect(identity string) {
	r.mu.Lock()
	wasConfigured := r.configuredOnline[identity]
	delete(r.configuredOnline, identity)
	r.mu.Unlock()

	batch := NewBatch(r.pub).SetLogger(r.logger)

	if wasConfigured {
		now := time.Now().UTC()
		batch.ClearRetained(identity, r.topics.Trigger(identity)).
			UpdateLastSeen(identity, now)
		r.recordLastSeen(identity, now)
	} else {
		batch.ClearRetained(identity, r.topics.Status(identity))
	}

	if err := batch.Publish(); err != nil {
		r.logger.Error("disconnect cleanup publish failed", "device_id", identity, "error", err)
	}

	r.logger.Info("device disconnect handled",
		"device_id", identity,
		"was_configured", wasConfigured,
	)
}

// InitDevice pushes the stored (or default) configuration down to a
// device, exactly as if the device had announced itself on the init
// topic. Used by the HTTP API to re-provision a connected device.
func (r *Router) InitDevice(deviceID string) error {
	if deviceID == "" {
		return ErrDeviceNotFound
	}
	r.handleInit(deviceID)
	return nil
}

// ApplySchedule validates and installs a new schedule for a device.
// The scheduler re-arm runs first so that a rejected value is never
// persisted or pushed; on success the config is stored, mirrored to
// the retained observer topics, and pushed to the device.
func (r *Router) ApplySchedule(ctx context.Context, deviceID, cronExpr string, durationMs int64) error {
	if err := r.scheduler.Rearm(deviceID, cronExpr, durationMs); err != nil {
		return err
	}

	cfg := &DeviceConfig{
		DeviceID:   deviceID,
		Cron:       cronExpr,
		DurationMs: durationMs,
	}
	if err := r.store.UpsertDeviceConfig(ctx, cfg); err != nil {
		return fmt.Errorf("persisting schedule: %w", err)
	}

	return NewBatch(r.pub).SetLogger(r.logger).
		SetCron(deviceID, cronExpr).
		SetDuration(deviceID, durationMs).
		MirrorConfig(deviceID, cronExpr, durationMs).
		Publish()
}

// RequestOTA commands a device to fetch and flash the current firmware
// image from the controller's firmware endpoint.
func (r *Router) RequestOTA(deviceID string) error {
	if deviceID == "" {
		return ErrDeviceNotFound
	}
	return NewBatch(r.pub).SetLogger(r.logger).
		StartOTA(deviceID).
		Publish()
}

// RequestRestart commands a device to reboot.
func (r *Router) RequestRestart(deviceID string) error {
	if deviceID == "" {
		return ErrDeviceNotFound
	}
	return NewBatch(r.pub).SetLogger(r.logger).
		Restart(deviceID).
		Publish()
}

// handleInit looks up (or default-initializes) the device configuration
// and pushes it back to the device. This both confirms presence and
// synchronizes configuration the device may have missed while offline.
func (r *Router) handleInit(deviceID string) {
	if deviceID == "" {
		r.logger.Warn("init with empty device id ignored")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	cfg, err := r.store.GetDeviceConfig(ctx, deviceID)
	if errors.Is(err, ErrDeviceNotFound) {
		cfg = &DeviceConfig{
			DeviceID:   deviceID,
			Cron:       r.defaults.Cron,
			DurationMs: r.defaults.DurationMs,
		}
		if err := r.store.UpsertDeviceConfig(ctx, cfg); err != nil {
			r.logger.Error("default config persist failed", "device_id", deviceID, "error", err)
			return
		}
		r.logger.Info("device default-initialized", "device_id", deviceID)
	} else if err != nil {
		r.logger.Error("config lookup failed", "device_id", deviceID, "error", err)
		return
	}

	err = NewBatch(r.pub).SetLogger(r.logger).
		SetCron(deviceID, cfg.Cron).
		SetDuration(deviceID, cfg.DurationMs).
		MirrorConfig(deviceID, cfg.Cron, cfg.DurationMs).
		SetStatus(deviceID, StatusInit).
		EchoInit(deviceID).
		Publish()
	if err != nil {
		r.logger.Error("init response publish failed", "device_id", deviceID, "error", err)
	}

	if err := r.scheduler.Rearm(deviceID, cfg.Cron, cfg.DurationMs); err != nil {
		r.logger.Error("arming schedule on init failed", "device_id", deviceID, "error", err)
	}
}

// heartbeatPayload is the JSON body devices attach to heartbeat pings:
// their clock and the schedule they are currently running.
type heartbeatPayload struct {
	Date                 string `json:"date"`
	WateringDurationInMs int64  `json:"wateringDurationInMs"`
	CronExp              string `json:"cronExp"`
}

// handleHeartbeat records liveness for the device and checks the
// schedule the device reports against the stored configuration.
// A malformed payload still counts as liveness; devices ping before
// they are configured.
func (r *Router) handleHeartbeat(deviceID string, payload []byte) {
	now := time.Now().UTC()
	r.recordLastSeen(deviceID, now)

	if len(payload) > 0 {
		var hb heartbeatPayload
		if err := json.Unmarshal(payload, &hb); err != nil {
			r.logger.Debug("malformed heartbeat payload",
				"device_id", deviceID,
				"error", err,
			)
		} else {
			r.checkReportedConfig(deviceID, hb)
		}
	}

	err := NewBatch(r.pub).SetLogger(r.logger).
		UpdateLastSeen(deviceID, now).
		Publish()
	if err != nil {
		r.logger.Error("last-seen publish failed", "device_id", deviceID, "error", err)
	}

	r.telemetry.WriteHeartbeat(deviceID, now)
}

// checkReportedConfig compares the schedule a device claims to be
// running with the stored one. Drift means the device missed a config
// push; it is logged so the operator can re-init the device. Empty or
// zero reported values are untouched defaults on a fresh device and
// not drift.
func (r *Router) checkReportedConfig(deviceID string, hb heartbeatPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	cfg, err := r.store.GetDeviceConfig(ctx, deviceID)
	if err != nil {
		return
	}

	cronDrift := hb.CronExp != "" && hb.CronExp != cfg.Cron
	durationDrift := hb.WateringDurationInMs > 0 && hb.WateringDurationInMs != cfg.DurationMs
	if cronDrift || durationDrift {
		r.logger.Warn("device reports stale schedule",
			"device_id", deviceID,
			"reported_cron", hb.CronExp,
			"stored_cron", cfg.Cron,
			"reported_duration_ms", hb.WateringDurationInMs,
			"stored_duration_ms", cfg.DurationMs,
		)
	}
}

// handleWateringReport appends a log entry for an observed on/off
// report and forwards it to the relay bookkeeping.
func (r *Router) handleWateringReport(deviceID, payload string) {
	on := payload == "on"

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var durationMs int64
	if cfg, err := r.store.GetDeviceConfig(ctx, deviceID); err == nil {
		durationMs = cfg.DurationMs
	}

	entry := &WateringLog{
		DeviceID:   deviceID,
		DurationMs: durationMs,
		Enabled:    on,
		Automated:  false,
		Reason:     "device report",
	}
	if err := r.store.AppendLog(ctx, entry); err != nil {
		r.logger.Error("watering report log failed", "device_id", deviceID, "error", err)
	}

	r.scheduler.ObserveReport(deviceID, on)
	r.telemetry.WriteWateringEvent(deviceID, on, false)
}

// handleStatus tracks retained-state bookkeeping for disconnect time.
func (r *Router) handleStatus(deviceID string, status Status) {
	if status != StatusAlive {
		r.logger.Debug("status observed", "device_id", deviceID, "status", string(status))
		return
	}

	r.mu.Lock()
	r.configuredOnline[deviceID] = true
	r.mu.Unlock()

	r.logger.Info("device online", "device_id", deviceID)
}

// handleConfigUpdate applies one config key change, re-arms the
// scheduler, persists, and pushes the new value down to the device.
//
// A rejected value (bad cron, non-positive duration) leaves the
// previous schedule, timer, and stored config untouched.
func (r *Router) handleConfigUpdate(deviceID, key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	cfg, err := r.store.GetDeviceConfig(ctx, deviceID)
	if errors.Is(err, ErrDeviceNotFound) {
		cfg = &DeviceConfig{
			DeviceID:   deviceID,
			Cron:       r.defaults.Cron,
			DurationMs: r.defaults.DurationMs,
		}
	} else if err != nil {
		r.logger.Error("config lookup failed", "device_id", deviceID, "error", err)
		return
	}

	switch key {
	case "cron":
		cfg.Cron = value
	case "duration":
		durationMs, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			r.logger.Warn("invalid duration payload", "device_id", deviceID, "value", value)
			return
		}
		cfg.DurationMs = durationMs
	default:
		r.logger.Debug("unknown config key", "device_id", deviceID, "key", key)
		return
	}

	// Re-arm first: validation happens there, and a rejected schedule
	// must never be persisted or pushed.
	if err := r.scheduler.Rearm(deviceID, cfg.Cron, cfg.DurationMs); err != nil {
		r.logger.Warn("config update rejected", "device_id", deviceID, "key", key, "error", err)
		return
	}

	if err := r.store.UpsertDeviceConfig(ctx, cfg); err != nil {
		r.logger.Error("config persist failed", "device_id", deviceID, "error", err)
	}

	err = NewBatch(r.pub).SetLogger(r.logger).
		SetCron(deviceID, cfg.Cron).
		SetDuration(deviceID, cfg.DurationMs).
		Publish()
	if err != nil {
		r.logger.Error("config push failed", "device_id", deviceID, "error", err)
	}

	r.logger.Info("config updated", "device_id", deviceID, "key", key)
}

// recordLastSeen persists the timestamp, tolerating unknown devices.
func (r *Router) recordLastSeen(deviceID string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := r.store.UpdateLastSeen(ctx, deviceID, at)
	if err != nil && !errors.Is(err, ErrDeviceNotFound) {
		r.logger.Error("last-seen persist failed", "device_id", deviceID, "error", err)
	}
}
