package loadtest

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	pollInterval         = 20 * time.Millisecond
	progressInterval     = time.Second
	PercentageMultiplier = 100
)
