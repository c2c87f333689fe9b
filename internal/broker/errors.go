package broker

import "errors"

// Domain errors for the broker package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, broker.ErrAlreadyConnected) {
//	    // reject the duplicate session
//	}
var (
	// ErrAlreadyConnected is returned when an identity attempts to open
	// a second concurrent session.
	ErrAlreadyConnected = errors.New("broker: identity already connected")

	// ErrNotAuthorized is returned when a publish attempt fails the
	// authorization checks (unknown topic, reserved topic, or identity
	// mismatch).
	ErrNotAuthorized = errors.New("broker: not authorized")

	// ErrIdentityMismatch is returned when a client publishes under a
	// device namespace that is not its own.
	ErrIdentityMismatch = errors.New("broker: topic identity does not match session")

	// ErrObserverPublish is returned when a websocket (observer) session
	// attempts to publish. Dashboards are read-only.
	ErrObserverPublish = errors.New("broker: observer sessions cannot publish")

	// ErrServerNotInitialized is returned when a connection is attempted
	// before operator credentials have been configured.
	ErrServerNotInitialized = errors.New("broker: server not initialized")

	// ErrBadCredentials is returned when connect-time credential
	// verification fails.
	ErrBadCredentials = errors.New("broker: bad credentials")
)
