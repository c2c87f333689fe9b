package mqtt

import "time"

// The broker echoes every publish back to any of our own matching
// subscriptions; there is no way to suppress this in MQTT 3.1.1 (paho
// does not speak v5, which added No Local subscriptions). The client
// therefore remembers its recent outbound publishes and tags matching
// inbound deliveries as loopback.
//
// Entries are matched by topic and payload without being consumed: one
// publish can echo through several overlapping subscriptions. Publishes
// to topics we never subscribe to simply age out.
const loopbackWindow = 30 * time.Second

// loopbackPruneThreshold bounds ledger growth from unechoed publishes.
const loopbackPruneThreshold = 256

// markOutbound records a publish in the loopback ledger.
func (c *Client) markOutbound(topic string, payload []byte) {
	key := topic + "\x00" + string(payload)
	now := time.Now()

	c.outMu.Lock()
	defer c.outMu.Unlock()

	if len(c.outbound) > loopbackPruneThreshold {
		for k, expires := range c.outbound {
			if now.After(expires) {
				delete(c.outbound, k)
			}
		}
	}
	c.outbound[key] = now.Add(loopbackWindow)
}

// isLoopback reports whether a delivered message matches a recent own
// publish. Retained replays after a restart are never loopback: the
// ledger belongs to this process instance.
func (c *Client) isLoopback(topic string, payload []byte) bool {
	key := topic + "\x00" + string(payload)

	c.outMu.Lock()
	defer c.outMu.Unlock()

	expires, ok := c.outbound[key]
	if !ok {
		return false
	}
	if time.Now().After(expires) {
		delete(c.outbound, key)
		return false
	}
	return true
}
