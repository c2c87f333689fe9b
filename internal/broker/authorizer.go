package broker

import (
	"regexp"

	"github.com/verdantlabs/sprinkler-core/internal/topic"
)

// Topic classification pattern sets.
//
// hostPatterns are reserved for the controller itself: configuration
// pushes, valve triggers, and system maintenance commands. A device
// attempting one of these is trying to command another device.
//
// clientPatterns are the topics physical devices may publish:
// registration, liveness, and log streams, plus their own retained
// status mirror (birth and LWT messages land there).
var (
	hostPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^esp/.+/watering/setDurationInMs$`),
		regexp.MustCompile(`^esp/.+/watering/setCron$`),
		regexp.MustCompile(`^esp/.+/watering/trigger$`),
		regexp.MustCompile(`^esp/.+/system/ota$`),
		regexp.MustCompile(`^esp/.+/system/restart$`),
	}

	clientPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^esp/init$`),
		regexp.MustCompile(`^esp/.+/heartbeat$`),
		regexp.MustCompile(`^esp/.+/system/logs$`),
		regexp.MustCompile(`^esp/.+/watering/logs$`),
		regexp.MustCompile(`^sprinkler/.+/status$`),
	}
)

// Authorizer decides, per publish attempt, whether the action is
// permitted. Decisions are pure functions of (topic, identity class,
// registry state); the Authorizer itself holds no mutable state.
type Authorizer struct {
	registry *Registry
	logger   Logger
}

// NewAuthorizer creates an authorizer backed by the given registry.
func NewAuthorizer(registry *Registry) *Authorizer {
	return &Authorizer{
		registry: registry,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the authorizer.
func (a *Authorizer) SetLogger(logger Logger) {
	a.logger = logger
}

// AuthorizePublish vets a publish attempt from the given sender.
//
// An empty sender denotes the controller's own loopback publish and is
// always allowed. For everything else the checks run in a fixed order:
//
//  1. Observer (websocket) sessions never publish.
//  2. The topic must match the host-reserved or client-allowed set.
//  3. Host-reserved topics are rejected for any non-host sender.
//  4. esp/init requires the payload (claimed device ID) to equal the
//     sender's identity; mismatch is identity spoofing.
//  5. Any other topic carrying a device ID segment requires it to equal
//     the sender's identity; a device only publishes under its own
//     namespace.
//
// Classification must run before the reserved-for-host check, and the
// self-identity check runs last so legitimate same-identity publishes
// are not rejected by broader pattern mismatches.
func (a *Authorizer) AuthorizePublish(sender, t string, payload []byte) error {
	if sender == "" {
		return nil
	}

	if a.registry.IsWebsocket(sender) {
		a.logger.Warn("observer publish rejected", "identity", sender, "topic", t)
		return ErrObserverPublish
	}

	isHost := matchAny(hostPatterns, t)
	isClient := matchAny(clientPatterns, t)

	if !isHost && !isClient {
		a.logger.Warn("publish to unclassified topic rejected", "identity", sender, "topic", t)
		return ErrNotAuthorized
	}

	if isHost {
		a.logger.Warn("host-reserved topic rejected", "identity", sender, "topic", t)
		return ErrNotAuthorized
	}

	if t == "esp/init" {
		if string(payload) != sender {
			a.logger.Warn("init identity spoofing rejected",
				"identity", sender,
				"claimed", string(payload),
			)
			return ErrIdentityMismatch
		}
		return nil
	}

	if parsed := topic.Parse(t); parsed.DeviceID != "" && parsed.DeviceID != sender {
		a.logger.Warn("cross-device publish rejected",
			"identity", sender,
			"topic", t,
		)
		return ErrIdentityMismatch
	}

	return nil
}

// IsHostTopic reports whether the topic is reserved for the controller.
func IsHostTopic(t string) bool {
	return matchAny(hostPatterns, t)
}

// IsClientTopic reports whether the topic is publishable by devices.
func IsClientTopic(t string) bool {
	return matchAny(clientPatterns, t)
}

func matchAny(patterns []*regexp.Regexp, t string) bool {
	for _, p := range patterns {
		if p.MatchString(t) {
			return true
		}
	}
	return false
}
