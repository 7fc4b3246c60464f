package coordination

import "errors"

// Domain errors for the coordination package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, coordination.ErrCommandNotFound) {
//	    // handle not found case
//	}
var (
	// ErrGroupNotFound is returned when a device group ID does not exist
	// or the group has been deactivated.
	ErrGroupNotFound = errors.New("coordination: group not found")

	// ErrCommandNotFound is returned when a command ID does not exist.
	ErrCommandNotFound = errors.New("coordination: command not found")

	// ErrStationNotFound is returned when the target station does not exist.
	ErrStationNotFound = errors.New("coordination: station not found")

	// ErrDeviceNotAtStation is returned when a group names a device that
	// is not assigned to the group's station.
	ErrDeviceNotAtStation = errors.New("coordination: device not at station")

	// ErrInvalidGroupType is returned when a group type is not recognised.
	ErrInvalidGroupType = errors.New("coordination: invalid group type")

	// ErrInvalidGroupName is returned when a group name is empty.
	ErrInvalidGroupName = errors.New("coordination: invalid group name")

	// ErrInvalidOperation is returned when a command names no operation.
	ErrInvalidOperation = errors.New("coordination: invalid operation")

	// ErrNotCancellable is returned when cancelling a command that has
	// already left the pending state.
	ErrNotCancellable = errors.New("coordination: command not cancellable")
)
