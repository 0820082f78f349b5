package mqtt

import "time"

// Event is a link or message notification delivered on Client.Events.
//
// The concrete types are EventConnected, EventDisconnected and EventMessage.
// A single consumer is expected to range over the channel and type-switch
// on each value, so all broker traffic is handled in one goroutine.
type Event interface {
	event()
}

// EventConnected reports a completed connection. Code is the CONNACK
// return code, always 0 for an accepted connection.
type EventConnected struct {
	Code byte
	At   time.Time
}

// EventDisconnected reports the loss of the link.
//
// UserInitiated is true only when Close was called; such a disconnect must
// not trigger a reconnect.
type EventDisconnected struct {
	Err           error
	UserInitiated bool
	At            time.Time
}

// EventMessage is one inbound publish.
type EventMessage struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
	At       time.Time
}

func (EventConnected) event()    {}
func (EventDisconnected) event() {}
func (EventMessage) event()      {}
