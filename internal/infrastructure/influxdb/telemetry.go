package influxdb

import (
	"time"

	"github.com/sony/gobreaker"
)

// Telemetry adapts the InfluxDB client to the message router's telemetry
// sink. Writes pass through a circuit breaker so that a disconnected or
// failing InfluxDB never slows the MQTT message path: once the breaker
// opens, writes are dropped until the backend recovers.
type Telemetry struct {
	client  *Client
	breaker *gobreaker.CircuitBreaker
	logger  Logger
}

// Logger is a minimal logging interface for telemetry drop reporting.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// NewTelemetry wraps the client with a circuit breaker.
//
// The breaker opens after five consecutive failed writes and probes
// again after thirty seconds.
func NewTelemetry(client *Client) *Telemetry {
	return &Telemetry{
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "influxdb-telemetry",
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
		logger: noopLogger{},
	}
}

// SetLogger installs a logger for dropped-write warnings.
func (t *Telemetry) SetLogger(l Logger) {
	if l == nil {
		t.logger = noopLogger{}
		return
	}
	t.logger = l
}

// WriteHeartbeat records a device heartbeat, dropping the point if the
// breaker is open or the client is disconnected.
func (t *Telemetry) WriteHeartbeat(deviceID string, at time.Time) {
	t.write(func() {
		t.client.WriteHeartbeatPoint(deviceID, at)
	}, "heartbeat", deviceID)
}

// WriteWateringEvent records a valve state transition.
func (t *Telemetry) WriteWateringEvent(deviceID string, on, automated bool) {
	t.write(func() {
		t.client.WriteWateringPoint(deviceID, on, automated)
	}, "watering", deviceID)
}

func (t *Telemetry) write(fn func(), measurement, deviceID string) {
	_, err := t.breaker.Execute(func() (interface{}, error) {
		if !t.client.IsConnected() {
			return nil, ErrNotConnected
		}
		fn()
		return nil, nil
	})
	if err != nil {
		t.logger.Warn("telemetry point dropped",
			"measurement", measurement,
			"device_id", deviceID,
			"error", err)
	}
}
