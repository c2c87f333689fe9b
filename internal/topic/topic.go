// Package topic parses MQTT topic strings into typed positional fields.
//
// Topics in the sprinkler namespace are purely positional:
//
//	esp/garden-north/watering/trigger
//	^   ^            ^        ^
//	prefix deviceID  category action
//
// Parsing never fails. Missing positions are empty strings; Levels
// reports how many segments were actually present so callers can
// distinguish an absent segment from an empty one.
package topic

import "strings"

// Topic is the parsed form of a slash-delimited topic string.
// It is a pure value type, reconstructed per message.
type Topic struct {
	Prefix   string
	DeviceID string
	Category string
	Action   string

	// Levels is the number of segments present in the original string.
	// Splitting "esp/d1" yields Levels=2; "" yields Levels=1 because
	// splitting an empty string produces a single empty segment.
	Levels int
}

// Parse splits a topic string on "/" and maps the first four segments
// to positional fields. Extra segments beyond the fourth are ignored;
// use ParseToArray for arbitrary-depth inspection.
func Parse(s string) Topic {
	segments := ParseToArray(s)

	t := Topic{Levels: len(segments)}
	if len(segments) > 0 {
		t.Prefix = segments[0]
	}
	if len(segments) > 1 {
		t.DeviceID = segments[1]
	}
	if len(segments) > 2 {
		t.Category = segments[2]
	}
	if len(segments) > 3 {
		t.Action = segments[3]
	}
	return t
}

// ParseToArray returns the raw segment split of a topic string.
// Callers needing positions beyond the fourth (e.g. the 5-level
// sprinkler/<id>/config/<key> topics) re-split with this.
func ParseToArray(s string) []string {
	return strings.Split(s, "/")
}

// Join reassembles segments into a topic string. It is the inverse of
// ParseToArray: Join(ParseToArray(s)) == s for all s.
func Join(segments []string) string {
	return strings.Join(segments, "/")
}
