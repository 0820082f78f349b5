package bridge

import "errors"

var (
	// ErrUnknownTopic is returned by Router.Resolve for a topic outside the
	// inbound table.
	ErrUnknownTopic = errors.New("bridge: unknown topic")

	// ErrMalformedTopic is returned when a soil humidity topic does not end
	// in an integer session id.
	ErrMalformedTopic = errors.New("bridge: malformed topic")

	// ErrInvalidPayload is returned when a payload is not a JSON object or a
	// required field is missing or mistyped.
	ErrInvalidPayload = errors.New("bridge: invalid payload")

	// ErrMissingTransport is returned by New without a transport.
	ErrMissingTransport = errors.New("bridge: transport is required")

	// ErrMissingStore is returned by New without a store.
	ErrMissingStore = errors.New("bridge: store is required")
)
