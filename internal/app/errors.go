package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrBackpressure   = errors.New("change queue full")
	ErrUnknownSession = errors.New("unknown session")
	ErrUnknownMetric  = errors.New("unknown metric")
)
