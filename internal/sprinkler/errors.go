package sprinkler

import "errors"

// Domain errors for the sprinkler package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, sprinkler.ErrInvalidCronExpression) {
//	    // reject the schedule change
//	}
var (
	// ErrDeviceNotFound is returned when a device ID has no stored
	// configuration.
	ErrDeviceNotFound = errors.New("sprinkler: device not found")

	// ErrInvalidCronExpression is returned when a schedule expression
	// does not parse as a 5-field cron string. Raised before any state
	// mutation or publish occurs.
	ErrInvalidCronExpression = errors.New("sprinkler: invalid cron expression")

	// ErrInvalidDuration is returned when a watering duration is not a
	// positive number of milliseconds.
	ErrInvalidDuration = errors.New("sprinkler: duration must be positive")

	// ErrPublishFailed is returned when one or more commands in a batch
	// could not be delivered to the broker.
	ErrPublishFailed = errors.New("sprinkler: command publish failed")
)
