// Package device tracks greenhouse actuator state and sends manual commands.
//
// The greenhouse has three actuator classes, named on the wire by their
// Portuguese field vocabulary:
//
//   - irrigacao (irrigation, per session)
//   - ventilacao (ventilation, whole greenhouse)
//   - iluminacao (lighting, whole greenhouse)
//
// # Status
//
// Controllers report their state on estufa/<class>/status. Tracker appends
// one DeviceStatus row per report; the current state of a device is the
// newest row for its (class, session) pair. Reports are never deduplicated.
//
// # Commands
//
// Dispatcher validates a manual command, publishes it on
// estufa/<class>/manual and, once the broker has acknowledged it, records
// a DeviceCommand row. Commands and statuses are separate tables, so a
// command never shows up as a reported status.
//
//	┌──────────┐  Send   ┌────────────┐ Publish ┌─────────┐
//	│ REST API │───────▶│ Dispatcher │───────▶│ breaker │──▶ broker
//	└──────────┘         └────────────┘         └─────────┘
//	                           │ InsertCommand (after ack)
//	                           ▼
//	                     device_commands
package device
