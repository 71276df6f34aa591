package influxdb

import "errors"

var (
	// ErrNotConnected indicates the client has been closed or never
	// connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the initial ping did not succeed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates the time series sink is switched off in
	// config. The bridge runs with SQLite history only in that case.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
