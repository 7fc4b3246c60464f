// Package mqtt provides MQTT client connectivity for MedEdge Treatment Core.
//
// This package manages:
//   - Connection to the ward broker with auto-reconnect
//   - Message publishing with QoS guarantees and per-call deadlines
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MedEdge uses MQTT as the message bus between the coordinator and the
// medical devices on the treatment floor. The broker decouples the
// coordinator from vendor-specific device gateways.
//
//	Treatment Core ↔ MQTT Broker ↔ Device Gateways
//
// Commands flow out on treatment/command/{device_id}; devices report back
// on treatment/telemetry/{device_id} and treatment/status/{device_id}.
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
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
//	// Subscribe to telemetry from every device
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a command
//	topic := mqtt.Topics{}.DeviceCommand("PUMP-A-017")
//	client.Publish(topic, []byte(`{"operation":"start"}`), 1, false)
package mqtt
