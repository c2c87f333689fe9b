// Package mqtt provides MQTT client connectivity for Sprinkler Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the control channel between the server and the irrigation
// controllers in the field. Devices publish under esp/ and the server
// mirrors authoritative state under sprinkler/:
//
//	Sprinkler Core ↔ MQTT Broker ↔ ESP irrigation controllers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against the broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all device heartbeats
//	err = client.Subscribe(mqtt.Topics{}.AllHeartbeats(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Switch a valve on
//	topic := mqtt.Topics{}.WateringTrigger("garden-north")
//	client.Publish(topic, []byte("on"), 1, false)
package mqtt
