package telemetry

import "errors"

var (
	// ErrSessionNotFound is returned by Store.Session for an unknown id.
	ErrSessionNotFound = errors.New("telemetry: session not found")

	// ErrInvalidImage is returned when a camera payload is not valid base64.
	ErrInvalidImage = errors.New("telemetry: invalid image encoding")
)
