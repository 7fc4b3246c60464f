package influxdb

import "errors"

// Sentinel errors, matched with errors.Is.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when the integration is switched
	// off in configuration.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
