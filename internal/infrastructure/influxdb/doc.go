// Package influxdb provides InfluxDB connectivity for Sprinkler Core.
//
// It wraps the official influxdb-client-go v2 library with irrigation-specific
// patterns for connection management, telemetry writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Device heartbeats (liveness over time)
//   - Watering events (valve open/close, auto vs manual)
//   - Custom measurements via WritePoint
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "verdantlabs",
//	    Bucket: "irrigation",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteHeartbeatPoint("garden-north", time.Now())
//
// The Telemetry wrapper adapts the client to the message router's sink
// interface and guards writes with a circuit breaker so a failing
// backend cannot slow message handling.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
