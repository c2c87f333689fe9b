package sprinkler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/mqtt"
)

// Publisher is the outbound broker contract the command layer needs.
// mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Command kinds, carried on each descriptor for logging.
const (
	kindSetDuration     = "set_duration"
	kindSetCron         = "set_cron"
	kindTrigger         = "trigger"
	kindStatus          = "status"
	kindTriggerAnnounce = "trigger_announce"
	kindConfigMirror    = "config_mirror"
	kindLastSeen        = "last_seen"
	kindInitAck         = "init_ack"
	kindClearRetained   = "clear_retained"
	kindOTA             = "ota"
	kindRestart         = "restart"
)

// defaultQoS is the delivery guarantee for all commands unless a
// command declares otherwise.
const defaultQoS byte = 1

// command is one pending outbound message. Commands are plain tagged
// descriptors; the batch executes them with one uniform dispatcher.
type command struct {
	kind     string
	deviceID string
	topic    string
	payload  []byte
	qos      byte
	retain   bool
}

// Batch accumulates commands and publishes them as a unit.
//
// Building is fluent and infallible except for schedule validation: an
// invalid cron expression is recorded as the batch's error and Publish
// refuses to send anything. Transport failures during Publish are
// per-command; one failed send never aborts its siblings.
//
//	err := sprinkler.NewBatch(client).
//	    SetCron("d1", "0 6 * * *").
//	    SetDuration("d1", 30000).
//	    Publish()
type Batch struct {
	pub      Publisher
	topics   mqtt.Topics
	commands []command
	err      error
	logger   Logger
}

// NewBatch creates an empty command batch against the given publisher.
func NewBatch(pub Publisher) *Batch {
	return &Batch{pub: pub, logger: noopLogger{}}
}

// SetLogger sets the logger used for per-command failure reporting.
func (b *Batch) SetLogger(logger Logger) *Batch {
	b.logger = logger
	return b
}

// SetDuration queues a retained duration push to the device.
func (b *Batch) SetDuration(deviceID string, durationMs int64) *Batch {
	if durationMs <= 0 {
		b.fail(fmt.Errorf("%w: %d", ErrInvalidDuration, durationMs))
		return b
	}
	return b.add(command{
		kind:     kindSetDuration,
		deviceID: deviceID,
		topic:    b.topics.SetDuration(deviceID),
		payload:  []byte(strconv.FormatInt(durationMs, 10)),
		qos:      defaultQoS,
		retain:   true,
	})
}

// SetCron queues a retained schedule push to the device.
//
// The expression is validated immediately; an invalid expression marks
// the whole batch as failed before any network interaction.
func (b *Batch) SetCron(deviceID, expr string) *Batch {
	if _, err := cron.ParseStandard(expr); err != nil {
		b.fail(fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, expr, err))
		return b
	}
	return b.add(command{
		kind:     kindSetCron,
		deviceID: deviceID,
		topic:    b.topics.SetCron(deviceID),
		payload:  []byte(expr),
		qos:      defaultQoS,
		retain:   true,
	})
}

// Trigger queues a valve switch command ("on" or "off"). Not retained.
func (b *Batch) Trigger(deviceID string, on bool) *Batch {
	payload := "off"
	if on {
		payload = "on"
	}
	return b.add(command{
		kind:     kindTrigger,
		deviceID: deviceID,
		topic:    b.topics.WateringTrigger(deviceID),
		payload:  []byte(payload),
		qos:      defaultQoS,
	})
}

// SetStatus queues a retained status update.
func (b *Batch) SetStatus(deviceID string, status Status) *Batch {
	return b.add(command{
		kind:     kindStatus,
		deviceID: deviceID,
		topic:    b.topics.Status(deviceID),
		payload:  []byte(status),
		qos:      defaultQoS,
		retain:   true,
	})
}

// AnnounceTrigger queues a watering transition announcement. Not retained.
func (b *Batch) AnnounceTrigger(deviceID string, event TriggerEvent) *Batch {
	return b.add(command{
		kind:     kindTriggerAnnounce,
		deviceID: deviceID,
		topic:    b.topics.Trigger(deviceID),
		payload:  []byte(event),
		qos:      defaultQoS,
	})
}

// MirrorConfig queues retained copies of the device's schedule and
// duration under the sprinkler/ observer namespace.
func (b *Batch) MirrorConfig(deviceID, expr string, durationMs int64) *Batch {
	b.add(command{
		kind:     kindConfigMirror,
		deviceID: deviceID,
		topic:    b.topics.ConfigCron(deviceID),
		payload:  []byte(expr),
		qos:      defaultQoS,
		retain:   true,
	})
	return b.add(command{
		kind:     kindConfigMirror,
		deviceID: deviceID,
		topic:    b.topics.ConfigDuration(deviceID),
		payload:  []byte(strconv.FormatInt(durationMs, 10)),
		qos:      defaultQoS,
		retain:   true,
	})
}

// UpdateLastSeen queues a retained last-seen timestamp.
func (b *Batch) UpdateLastSeen(deviceID string, at time.Time) *Batch {
	return b.add(command{
		kind:     kindLastSeen,
		deviceID: deviceID,
		topic:    b.topics.LastSeen(deviceID),
		payload:  []byte(at.UTC().Format(time.RFC3339)),
		qos:      defaultQoS,
		retain:   true,
	})
}

// EchoInit queues the registration acknowledgement: the device's own ID
// echoed back on esp/init.
func (b *Batch) EchoInit(deviceID string) *Batch {
	return b.add(command{
		kind:     kindInitAck,
		deviceID: deviceID,
		topic:    mqtt.TopicInit,
		payload:  []byte(deviceID),
		qos:      defaultQoS,
	})
}

// StartOTA queues a firmware update command. The device fetches the
// new image from the controller's firmware endpoint on receipt.
func (b *Batch) StartOTA(deviceID string) *Batch {
	return b.add(command{
		kind:     kindOTA,
		deviceID: deviceID,
		topic:    b.topics.SystemOTA(deviceID),
		payload:  []byte("update"),
		qos:      defaultQoS,
	})
}

// Restart queues a device reboot command.
func (b *Batch) Restart(deviceID string) *Batch {
	return b.add(command{
		kind:     kindRestart,
		deviceID: deviceID,
		topic:    b.topics.SystemRestart(deviceID),
		payload:  []byte("restart"),
		qos:      defaultQoS,
	})
}

// ClearRetained queues an empty retained payload to each topic, the
// broker mechanism for erasing a previously retained message.
func (b *Batch) ClearRetained(deviceID string, topics ...string) *Batch {
	for _, t := range topics {
		b.add(command{
			kind:     kindClearRetained,
			deviceID: deviceID,
			topic:    t,
			payload:  []byte{},
			qos:      defaultQoS,
			retain:   true,
		})
	}
	return b
}

// Len returns the number of queued commands.
func (b *Batch) Len() int {
	return len(b.commands)
}

// Err returns the validation error recorded during building, if any.
func (b *Batch) Err() error {
	return b.err
}

// Publish sends all queued commands.
//
// If building recorded a validation error, nothing is sent and that
// error is returned. Transport failures are logged per-command and do
// not abort the remaining commands; the combined failure is returned
// wrapped in ErrPublishFailed.
func (b *Batch) Publish() error {
	if b.err != nil {
		return b.err
	}

	var failures []error
	for _, cmd := range b.commands {
		if err := b.pub.Publish(cmd.topic, cmd.payload, cmd.qos, cmd.retain); err != nil {
			b.logger.Error("command publish failed",
				"kind", cmd.kind,
				"device_id", cmd.deviceID,
				"topic", cmd.topic,
				"error", err,
			)
			failures = append(failures, fmt.Errorf("%s %s: %w", cmd.kind, cmd.topic, err))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%w: %w", ErrPublishFailed, errors.Join(failures...))
	}
	return nil
}

func (b *Batch) add(cmd command) *Batch {
	b.commands = append(b.commands, cmd)
	return b
}

// fail records the first validation error; later errors keep the first.
func (b *Batch) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
