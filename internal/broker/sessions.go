package broker

import (
	"sync"
	"time"

	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/metrics"
)

// Logger defines the logging interface used by the broker package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Session records one active connection.
type Session struct {
	// Identity is the client identifier presented at connect time.
	// For physical devices this is the device ID.
	Identity string

	// ConnectedAt is when the session was registered.
	ConnectedAt time.Time

	// IsDevice marks physical device sessions. Websocket (dashboard)
	// sessions are tracked but never counted as devices.
	IsDevice bool
}

// Registry tracks which identities currently hold an active connection.
//
// Membership is the sole source of truth for "is this device currently
// reachable". The registry never contains two device sessions with the
// same identity; this is enforced at registration time and surfaced to
// the authentication decision as a hard rejection.
//
// Device and observer sessions live in separate tables keyed by class:
// an observer connecting under a device's identity must never displace
// or demote the device's session.
//
// All public methods are thread-safe.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]Session
	observers map[string]Session
	logger    Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		devices:   make(map[string]Session),
		observers: make(map[string]Session),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register records a new session for the identity.
//
// Device-class registrations fail with ErrAlreadyConnected if the
// identity already holds a device session, preventing impersonation and
// duplicate sessions. Websocket-class registrations never occupy a
// device slot and never conflict.
func (r *Registry) Register(identity string, isDevice bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session := Session{
		Identity:    identity,
		ConnectedAt: time.Now().UTC(),
		IsDevice:    isDevice,
	}

	if isDevice {
		if _, ok := r.devices[identity]; ok {
			r.logger.Warn("duplicate session rejected", "identity", identity)
			return ErrAlreadyConnected
		}
		r.devices[identity] = session
		metrics.ConnectedDevices.Inc()
	} else {
		r.observers[identity] = session
	}

	r.logger.Debug("session registered", "identity", identity, "device", isDevice)
	return nil
}

// Unregister removes the identity's session of the given class.
//
// Unregistering an absent identity is a no-op, not an error, because
// disconnect events can race with registry cleanup. The class matters:
// an observer dropping must not evict a device session sharing its
// identity, and vice versa.
func (r *Registry) Unregister(identity string, isDevice bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if isDevice {
		if _, ok := r.devices[identity]; ok {
			delete(r.devices, identity)
			metrics.ConnectedDevices.Dec()
			r.logger.Debug("session unregistered", "identity", identity, "device", true)
		}
		return
	}

	if _, ok := r.observers[identity]; ok {
		delete(r.observers, identity)
		r.logger.Debug("session unregistered", "identity", identity, "device", false)
	}
}

// IsConnected reports whether the identity currently holds any session.
func (r *Registry) IsConnected(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, dev := r.devices[identity]
	_, obs := r.observers[identity]
	return dev || obs
}

// IsDevice reports whether the identity holds a device-class session.
func (r *Registry) IsDevice(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[identity]
	return ok
}

// IsWebsocket reports whether the identity holds only an observer
// session. An identity that also holds a device session is classified
// as a device: the physical device must not be silenced by an observer
// squatting on its identity.
func (r *Registry) IsWebsocket(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, dev := r.devices[identity]
	_, obs := r.observers[identity]
	return obs && !dev
}

// DeviceIdentities returns the identities of all connected device-class
// sessions. The result is a copy and safe to retain.
func (r *Registry) DeviceIdentities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the total number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices) + len(r.observers)
}
