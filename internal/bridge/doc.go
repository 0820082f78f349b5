// Package bridge connects the greenhouse MQTT broker to the Estufa store.
//
// Three pieces cooperate:
//   - Supervisor owns the connection lifecycle. It connects, resubscribes the
//     inbound topic table, and after an unexpected disconnect retries with a
//     short first delay followed by a longer steady delay.
//   - Router maps inbound topics to typed routes and decodes their payloads.
//   - Bridge runs the single dispatch loop over the transport's event channel.
//     Each routed message is applied in one database transaction together
//     with the topic health update; notifications go out after commit.
//
// Because one goroutine consumes every event, inbound messages are handled
// strictly one at a time and the domain components need no locking.
//
// Shutdown is driven by cancelling the context passed to Run. The transport is
// closed gracefully, which reports a user-initiated disconnect, so the
// Supervisor stops instead of scheduling a reconnect.
package bridge
