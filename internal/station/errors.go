package station

import "errors"

var (
	// ErrAreaNotFound is returned when a treatment area ID does not exist.
	ErrAreaNotFound = errors.New("treatment area not found")

	// ErrAreaHasStations is returned when trying to delete an area that still has stations.
	ErrAreaHasStations = errors.New("treatment area has stations: delete stations first")

	// ErrStationNotFound is returned when a station ID does not exist.
	ErrStationNotFound = errors.New("station not found")

	// ErrInvalidAreaType is returned for an unrecognised area type.
	ErrInvalidAreaType = errors.New("invalid area type")

	// ErrInvalidStatus is returned for an unrecognised station status.
	ErrInvalidStatus = errors.New("invalid station status")

	// ErrDuplicateStationNumber is returned when a station number is already in use.
	ErrDuplicateStationNumber = errors.New("station number already in use")
)
