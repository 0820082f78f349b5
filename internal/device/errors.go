package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrBusy) {
//	    // tell the user to retry later
//	}
var (
	// ErrInvalidDeviceClass is returned for a class outside the three
	// greenhouse actuators.
	ErrInvalidDeviceClass = errors.New("device: invalid device class")

	// ErrMissingSessionReference is returned when an irrigation command
	// does not name a session.
	ErrMissingSessionReference = errors.New("device: irrigation command requires a session")

	// ErrEmptyCommand is returned when the command text is blank.
	ErrEmptyCommand = errors.New("device: command is empty")

	// ErrBusy is returned when the broker link is down or the publish
	// circuit breaker is open. Nothing was sent.
	ErrBusy = errors.New("device: broker unavailable")

	// ErrTransport is returned when the publish was attempted but not
	// acknowledged. No audit row is written.
	ErrTransport = errors.New("device: command not acknowledged by broker")

	// ErrAuditFailed is returned when the command was published but the
	// audit row could not be written.
	ErrAuditFailed = errors.New("device: command sent but not recorded")
)

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDeviceClass) ||
		errors.Is(err, ErrMissingSessionReference) ||
		errors.Is(err, ErrEmptyCommand)
}
