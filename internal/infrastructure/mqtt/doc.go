// Package mqtt is the broker transport for Estufa Core.
//
// This package manages:
//   - One connection attempt per Connect call (no automatic reconnect)
//   - Publishing with acknowledgement timeouts
//   - Subscriptions with wildcard validation
//   - Delivery of link and message events on a single channel
//
// # Architecture
//
// Field devices in the greenhouse (sensors, the camera and the irrigation,
// ventilation and lighting controllers) talk to a hosted broker. Estufa Core
// subscribes to their telemetry and publishes manual commands back.
//
//	Field devices ↔ MQTT Broker ↔ Estufa Core (bridge)
//
// The bridge supervisor owns the retry schedule, so paho's own reconnect
// logic is disabled and every disconnect surfaces as an EventDisconnected.
//
// # Security Considerations
//
//   - TLS is on by default with certificate verification
//   - tls_insecure_skip_verify must be set explicitly to disable verification
//   - Credentials come from configuration or the environment, never code
//
// # Usage
//
//	client, err := mqtt.New(cfg.MQTT, mqtt.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	_ = client.Subscribe("estufa/temperatura", 1)
//
//	for ev := range client.Events() {
//	    switch e := ev.(type) {
//	    case mqtt.EventMessage:
//	        handle(e.Topic, e.Payload)
//	    case mqtt.EventDisconnected:
//	        // schedule a reconnect unless e.UserInitiated
//	    }
//	}
package mqtt
