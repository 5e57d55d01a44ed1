package loadtest

import (
	"time"

	"github.com/okian/epidash/internal/domain/model"
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL     string        // Base URL of the dashboard service
	Sessions    int           // Number of concurrent dashboard sessions
	Changes     int           // Input changes submitted per session
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	PollTimeout time.Duration // How long to wait for the last version to publish
	Seed        uint64        // Seed for the random input sequence
	OutputFile  string        // Report file, empty to skip
	LogFile     string        // Log file for test output
	Verbose     bool          // Enable verbose logging
}

// controls mirrors the fields of GET /api/options the load test needs.
type controls struct {
	Countries []string `json:"countries"`
	Min       int      `json:"min"`
	Max       int      `json:"max"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type submitResponse struct {
	Status  string `json:"status"`
	Version uint64 `json:"version"`
}

type figuresResponse struct {
	Version uint64            `json:"version"`
	Ready   bool              `json:"ready"`
	Figures *publishedFigures `json:"figures,omitempty"`
}

// publishedFigures is the part of a figure set the load test checks.
type publishedFigures struct {
	Inputs model.Inputs `json:"inputs"`
	Rows   int          `json:"rows"`
}

// Stats holds test statistics.
type Stats struct {
	RunID             string        `json:"run_id"`
	SessionsCreated   int           `json:"sessions_created"`
	ChangesSubmitted  int           `json:"changes_submitted"`
	ChangesAccepted   int           `json:"changes_accepted"`
	ChangesThrottled  int           `json:"changes_throttled"`
	ChangesFailed     int           `json:"changes_failed"`
	SessionsConverged int           `json:"sessions_converged"`
	SessionsMismatch  int           `json:"sessions_mismatch"`
	SessionsTimedOut  int           `json:"sessions_timed_out"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	Duration          time.Duration `json:"duration"`
}

// outcome is the last accepted change of one session.
type outcome struct {
	sessionID string
	version   uint64
	inputs    model.Inputs
}
