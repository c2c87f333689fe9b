// Package broker integrates Sprinkler Core with the MQTT broker's
// session lifecycle.
//
// This package manages:
//   - Session Registry: which identities are currently connected
//   - Authorization: per-connection and per-publish permission checks
//   - Hooks: the callback surface a broker implementation drives
//
// # Architecture
//
// The broker delivers connection and publish events; the hooks vet them
// against the session registry and the topic classification rules, then
// forward accepted traffic into the message router:
//
//	Broker events → Hooks → Registry / Authorizer
//	                  │
//	                  └─▶ MessageSink (router)
//
// # Key Rules
//
//   - Two sessions never share a device identity (ErrAlreadyConnected)
//   - Websocket sessions observe only; their publishes are rejected
//   - Host-reserved topics (config pushes, triggers, OTA, restart) are
//     rejected for any sender other than the controller itself
//   - A device publishes only under its own identity's namespace;
//     esp/init payloads must match the session identity
//
// The core is testable without a real broker: any transport that calls
// OnConnect, OnDisconnect, OnPublishAttempt, and OnPublishAccepted gets
// identical semantics.
package broker
