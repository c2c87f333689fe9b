package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/verdantlabs/sprinkler-core/internal/infrastructure/metrics"
)

// MessageSink receives publishes that passed authorization.
// The inbound message router implements this.
type MessageSink interface {
	// Handle processes an accepted publish. An empty sender denotes a
	// message the controller itself originated.
	Handle(sender, topic string, payload []byte)
}

// DisconnectSink receives session-closed notifications.
type DisconnectSink interface {
	HandleDisconnect(identity string)
}

// CredentialChecker verifies connect-time credentials against the
// persisted operator account.
type CredentialChecker interface {
	// IsInitialized reports whether operator credentials exist yet.
	IsInitialized(ctx context.Context) (bool, error)

	// Verify checks a username/password pair.
	Verify(ctx context.Context, username, password string) error
}

// Hooks implements the broker integration contract: connection vetting,
// publish authorization, and dispatch of accepted messages into the
// core. It owns the session registry on behalf of the broker layer so
// no ambient global state is needed.
type Hooks struct {
	registry   *Registry
	authorizer *Authorizer
	creds      CredentialChecker
	messages   MessageSink
	disconnect DisconnectSink
	logger     Logger
}

// NewHooks wires the broker integration together. Message and
// disconnect sinks may be nil until SetSinks is called; credential
// checking is skipped if creds is nil (local development brokers).
func NewHooks(registry *Registry, authorizer *Authorizer, creds CredentialChecker) *Hooks {
	return &Hooks{
		registry:   registry,
		authorizer: authorizer,
		creds:      creds,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the hooks.
func (h *Hooks) SetLogger(logger Logger) {
	h.logger = logger
}

// SetSinks installs the message and disconnect handlers. Called after
// construction because the router depends on components built later.
func (h *Hooks) SetSinks(messages MessageSink, disconnect DisconnectSink) {
	h.messages = messages
	h.disconnect = disconnect
}

// OnConnect vets a new connection.
//
// The connection is rejected if the server has no operator credentials
// yet, if the supplied credentials are wrong, or if a device-class
// identity already holds a session. Websocket transports never occupy a
// device slot, so duplicates are permitted for them.
func (h *Hooks) OnConnect(ctx context.Context, identity, username, password string, isWebsocket bool) error {
	if h.creds != nil {
		initialized, err := h.creds.IsInitialized(ctx)
		if err != nil {
			return fmt.Errorf("checking server initialization: %w", err)
		}
		if !initialized {
			h.logger.Warn("connection rejected, server not initialized", "identity", identity)
			return ErrServerNotInitialized
		}

		if err := h.creds.Verify(ctx, username, password); err != nil {
			h.logger.Warn("connection rejected, bad credentials", "identity", identity)
			return errors.Join(ErrBadCredentials, err)
		}
	}

	if err := h.registry.Register(identity, !isWebsocket); err != nil {
		return err
	}

	h.logger.Info("client connected", "identity", identity, "websocket", isWebsocket)
	return nil
}

// OnDisconnect evicts the identity from the registry and, for device
// sessions, notifies the disconnect sink. Observer sessions have no
// retained state to clean up, so the sink is skipped for them.
// Fire-and-forget; safe to call for unknown identities.
func (h *Hooks) OnDisconnect(identity string, isWebsocket bool) {
	h.registry.Unregister(identity, !isWebsocket)
	h.logger.Info("client disconnected", "identity", identity, "websocket", isWebsocket)

	if isWebsocket {
		return
	}
	if h.disconnect != nil {
		h.disconnect.HandleDisconnect(identity)
	}
}

// OnPublishAttempt authorizes a publish before the broker accepts it.
// An empty sender denotes the controller's own loopback publish.
func (h *Hooks) OnPublishAttempt(sender, topic string, payload []byte) error {
	if err := h.authorizer.AuthorizePublish(sender, topic, payload); err != nil {
		metrics.PublishDenied.Inc()
		return err
	}
	return nil
}

// OnPublishAccepted delivers an accepted publish to the router.
func (h *Hooks) OnPublishAccepted(sender, topic string, payload []byte) {
	if h.messages != nil {
		h.messages.Handle(sender, topic, payload)
	}
}
