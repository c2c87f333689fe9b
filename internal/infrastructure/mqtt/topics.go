package mqtt

import "fmt"

// Topic prefixes for the two halves of the namespace.
//
// Devices publish under esp/ and subscribe under esp/{deviceID}/.
// The server mirrors device state under sprinkler/{deviceID}/ for
// dashboards and other observers.
const (
	// TopicPrefixDevice is the base for all device-facing topics.
	TopicPrefixDevice = "esp"

	// TopicPrefixServer is the base for all server-published state topics.
	TopicPrefixServer = "sprinkler"
)

// TopicInit is the registration topic. Devices publish their ID here
// once on boot; the server echoes the ID back on the same topic so the
// device knows it was seen.
const TopicInit = "esp/init"

// Topics provides builders for sprinkler MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.Status("garden-north")
//	// Returns: "sprinkler/garden-north/status"
type Topics struct{}

// =============================================================================
// Device Topics (esp/...)
// =============================================================================

// Heartbeat returns the topic a device publishes liveness pings to.
//
// Example: esp/garden-north/heartbeat
func (Topics) Heartbeat(deviceID string) string {
	return fmt.Sprintf("%s/%s/heartbeat", TopicPrefixDevice, deviceID)
}

// SetCron returns the topic carrying a device's watering schedule.
// Published retained so devices pick it up on reconnect.
//
// Example: esp/garden-north/watering/setCron
func (Topics) SetCron(deviceID string) string {
	return fmt.Sprintf("%s/%s/watering/setCron", TopicPrefixDevice, deviceID)
}

// SetDuration returns the topic carrying a device's watering duration.
// Published retained so devices pick it up on reconnect.
//
// Example: esp/garden-north/watering/setDurationInMs
func (Topics) SetDuration(deviceID string) string {
	return fmt.Sprintf("%s/%s/watering/setDurationInMs", TopicPrefixDevice, deviceID)
}

// WateringTrigger returns the topic that switches a device's valve.
// Payload is "on" or "off".
//
// Example: esp/garden-north/watering/trigger
func (Topics) WateringTrigger(deviceID string) string {
	return fmt.Sprintf("%s/%s/watering/trigger", TopicPrefixDevice, deviceID)
}

// WateringLogs returns the topic a device reports watering events to.
//
// Example: esp/garden-north/watering/logs
func (Topics) WateringLogs(deviceID string) string {
	return fmt.Sprintf("%s/%s/watering/logs", TopicPrefixDevice, deviceID)
}

// SystemLogs returns the topic a device streams diagnostic logs to.
//
// Example: esp/garden-north/system/logs
func (Topics) SystemLogs(deviceID string) string {
	return fmt.Sprintf("%s/%s/system/logs", TopicPrefixDevice, deviceID)
}

// SystemOTA returns the topic that starts a firmware update on a device.
//
// Example: esp/garden-north/system/ota
func (Topics) SystemOTA(deviceID string) string {
	return fmt.Sprintf("%s/%s/system/ota", TopicPrefixDevice, deviceID)
}

// SystemRestart returns the topic that reboots a device.
//
// Example: esp/garden-north/system/restart
func (Topics) SystemRestart(deviceID string) string {
	return fmt.Sprintf("%s/%s/system/restart", TopicPrefixDevice, deviceID)
}

// =============================================================================
// Server State Topics (sprinkler/...)
// =============================================================================

// Status returns the retained status topic for a device.
// Values: INIT, ALIVE, DEAD, WATERING.AUTO, WATERING.MAN.
//
// Example: sprinkler/garden-north/status
func (Topics) Status(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixServer, deviceID)
}

// LastSeen returns the retained last-seen timestamp topic for a device.
//
// Example: sprinkler/garden-north/status/lastseen
func (Topics) LastSeen(deviceID string) string {
	return fmt.Sprintf("%s/%s/status/lastseen", TopicPrefixServer, deviceID)
}

// ConfigCron returns the retained topic mirroring a device's schedule.
//
// Example: sprinkler/garden-north/config/cron
func (Topics) ConfigCron(deviceID string) string {
	return fmt.Sprintf("%s/%s/config/cron", TopicPrefixServer, deviceID)
}

// ConfigDuration returns the retained topic mirroring a device's duration.
//
// Example: sprinkler/garden-north/config/duration
func (Topics) ConfigDuration(deviceID string) string {
	return fmt.Sprintf("%s/%s/config/duration", TopicPrefixServer, deviceID)
}

// Trigger returns the topic announcing watering state transitions.
// Values: AUTO.ON, AUTO.OFF, MAN.ON, MAN.OFF.
//
// Example: sprinkler/garden-north/trigger
func (Topics) Trigger(deviceID string) string {
	return fmt.Sprintf("%s/%s/trigger", TopicPrefixServer, deviceID)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllHeartbeats returns a pattern matching heartbeats from every device.
//
// Pattern: esp/+/heartbeat
func (Topics) AllHeartbeats() string {
	return fmt.Sprintf("%s/+/heartbeat", TopicPrefixDevice)
}

// AllWateringLogs returns a pattern matching watering events from every device.
//
// Pattern: esp/+/watering/logs
func (Topics) AllWateringLogs() string {
	return fmt.Sprintf("%s/+/watering/logs", TopicPrefixDevice)
}

// AllSystemLogs returns a pattern matching diagnostic logs from every device.
//
// Pattern: esp/+/system/logs
func (Topics) AllSystemLogs() string {
	return fmt.Sprintf("%s/+/system/logs", TopicPrefixDevice)
}

// AllStatuses returns a pattern matching every device's status topic.
//
// Pattern: sprinkler/+/status
func (Topics) AllStatuses() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixServer)
}

// AllConfigs returns a pattern matching every device's retained config
// topics.
//
// Pattern: sprinkler/+/config/+
func (Topics) AllConfigs() string {
	return fmt.Sprintf("%s/+/config/+", TopicPrefixServer)
}

// AllDeviceTopics returns a pattern matching all device-published topics.
// Use with caution - this receives ALL device traffic.
//
// Pattern: esp/#
func (Topics) AllDeviceTopics() string {
	return "esp/#"
}
