// Package sprinkler implements the irrigation control core: command
// publishing, inbound message routing, persistence, and the watering
// scheduler.
//
// # Architecture
//
//	Broker hooks ─▶ Router ──▶ Repository (SQLite)
//	                  │   └──▶ Scheduler ──▶ Batch ──▶ MQTT
//	                  └──────────────────▶ TelemetryWriter (InfluxDB)
//
// The Router classifies accepted publishes (registration, heartbeats,
// watering reports, config updates) and keeps the store and scheduler
// in sync. The Scheduler owns one recurring job per device and drives
// the valve through timed AUTO.ON/AUTO.OFF command batches. Batches
// are lists of tagged command descriptors executed by one dispatcher;
// a transport failure on one command never aborts its siblings.
//
// # Key Types
//
//   - DeviceConfig: persisted per-device schedule and duration
//   - WateringLog: append-only watering event record
//   - Batch: fluent outbound command builder with uniform QoS/retain policy
//   - Scheduler: per-device job table with manual-override semantics
//   - Router: inbound dispatch and disconnect cleanup
package sprinkler
