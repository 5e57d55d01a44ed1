package metrics

import (
	"errors"
)

// Sentinel kinds for metrics errors.
var (
	ErrGather        = errors.New("metrics gather failed")
	ErrUnknownMetric = errors.New("unknown metric")
)
