package service

import "errors"

// Domain errors.
var (
	ErrConfiguration     = errors.New("invalid device configuration")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrControlNotExposed = errors.New("device does not accept control requests")
	ErrInvalidTimeRange  = errors.New("invalid time range: from must be <= to")
)
