// Package mqtt provides MQTT client connectivity for xcvrd.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// xcvrd uses MQTT as its outward event surface: lifecycle state changes,
// transceiver events, and remediation notifications are published for
// fleet tooling to consume, and operator commands (such as pausing
// remediation) arrive on command topics.
//
//	xcvrd ↔ MQTT Broker ↔ Fleet tooling / operators
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to operator commands
//	err = client.Subscribe(mqtt.Topics{}.CommandPauseRemediation(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a state change
//	topic := mqtt.Topics{}.TransceiverState(4)
//	client.Publish(topic, []byte(`{"state":"DISCOVERED"}`), 1, true)
package mqtt
