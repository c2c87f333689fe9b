package influxdb

import (
	"sync"
	"testing"
	"time"
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns)
}

func TestTelemetryDropsWhenDisconnected(t *testing.T) {
	client := &Client{connected: false}
	tel := NewTelemetry(client)
	logger := &recordingLogger{}
	tel.SetLogger(logger)

	tel.WriteHeartbeat("garden-north", time.Now())
	tel.WriteWateringEvent("garden-north", true, true)

	if got := logger.count(); got != 2 {
		t.Errorf("dropped-write warnings = %d, want 2", got)
	}
}

func TestTelemetryBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client := &Client{connected: false}
	tel := NewTelemetry(client)
	logger := &recordingLogger{}
	tel.SetLogger(logger)

	for i := 0; i < 10; i++ {
		tel.WriteHeartbeat("garden-north", time.Now())
	}

	// Every write is dropped, whether rejected by the open breaker or
	// failed inside it.
	if got := logger.count(); got != 10 {
		t.Errorf("dropped-write warnings = %d, want 10", got)
	}
}

func TestTelemetrySetLoggerNil(t *testing.T) {
	client := &Client{connected: false}
	tel := NewTelemetry(client)
	tel.SetLogger(nil)

	// Must not panic with the noop logger installed.
	tel.WriteHeartbeat("garden-north", time.Now())
}
