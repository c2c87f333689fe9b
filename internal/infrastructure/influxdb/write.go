package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteHeartbeatPoint records a device heartbeat in the "heartbeat"
// measurement. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "garden-north")
//   - at: Timestamp of the heartbeat
func (c *Client) WriteHeartbeatPoint(deviceID string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"heartbeat",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"alive": 1,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteWateringPoint records a valve state transition in the "watering"
// measurement.
//
// Parameters:
//   - deviceID: Device identifier
//   - on: Whether the valve opened (true) or closed (false)
//   - automated: Whether the transition came from the cron schedule
func (c *Client) WriteWateringPoint(deviceID string, on bool, automated bool) {
	if !c.IsConnected() {
		return
	}

	source := "manual"
	if automated {
		source = "auto"
	}

	point := write.NewPoint(
		"watering",
		map[string]string{
			"device_id": deviceID,
			"source":    source,
		},
		map[string]interface{}{
			"valve_open": boolToInt(on),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
