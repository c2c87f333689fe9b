package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Devices       DeviceMetrics    `json:"devices"`
	Scheduler     SchedulerMetrics `json:"scheduler"`
	Database      DatabaseMetrics  `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DeviceMetrics contains session registry statistics.
type DeviceMetrics struct {
	Connected int `json:"connected"`
	Sessions  int `json:"sessions"`
}

// SchedulerMetrics contains watering scheduler statistics.
type SchedulerMetrics struct {
	Jobs           int `json:"jobs"`
	Watering       int `json:"watering"`
	ManualOverride int `json:"manual_override"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleSystem returns comprehensive runtime metrics as JSON.
// Prometheus-format instruments live on GET /metrics instead.
func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Devices: DeviceMetrics{
			Connected: len(s.sessions.DeviceIdentities()),
			Sessions:  s.sessions.Count(),
		},
	}

	if s.hub != nil {
		metrics.WebSocket = WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		}
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		}
	}

	jobs := s.scheduler.Jobs()
	metrics.Scheduler.Jobs = len(jobs)
	for _, j := range jobs {
		if j.RelayOn {
			metrics.Scheduler.Watering++
		}
		if j.ManualOverride {
			metrics.Scheduler.ManualOverride++
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
