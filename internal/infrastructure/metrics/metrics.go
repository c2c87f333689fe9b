// Package metrics defines the Prometheus instruments shared across
// Sprinkler Core. Collectors register themselves with the default
// registry; the API server exposes them on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesRouted counts inbound MQTT messages by topic category.
	MessagesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sprinkler",
		Subsystem: "router",
		Name:      "messages_routed_total",
		Help:      "Inbound MQTT messages handled, by topic category.",
	}, []string{"category"})

	// PublishDenied counts publishes rejected by the authorization gate.
	PublishDenied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sprinkler",
		Subsystem: "broker",
		Name:      "publish_denied_total",
		Help:      "Publishes rejected by the topic authorization gate.",
	})

	// WateringFirings counts valve activations by source.
	WateringFirings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sprinkler",
		Subsystem: "scheduler",
		Name:      "watering_firings_total",
		Help:      "Valve activations, by source (auto or manual).",
	}, []string{"source"})

	// ConnectedDevices tracks the number of registered device sessions.
	ConnectedDevices = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sprinkler",
		Subsystem: "broker",
		Name:      "connected_devices",
		Help:      "Device sessions currently registered.",
	})
)
