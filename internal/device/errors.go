package device

import "errors"

var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDuplicateExternalID is returned when an external device ID is already registered.
	ErrDuplicateExternalID = errors.New("external device ID already registered")

	// ErrInvalidStatus is returned for an unrecognised device status.
	ErrInvalidStatus = errors.New("invalid device status")

	// ErrMissingExternalID is returned when a device has no external identifier.
	ErrMissingExternalID = errors.New("external device ID is required")
)
