package loadtest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/epidash/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends log output to both the console and a file. If logFile
// is empty, a timestamped filename is generated.
func SetupLogging(logFile, format string) (io.Closer, error) {
	if logFile == "" {
		logFile = "loadtest_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithFormat(format), logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file, nil
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Dashboard Load Test Tool
========================

Opens many dashboard sessions, submits bursts of input changes to each and
checks every session settles on the figures for its last change.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8050")
  -sessions int
        Number of concurrent sessions (default 50)
  -changes int
        Input changes submitted per session (default 20)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -poll-timeout duration
        How long to wait for each session's last version (default 30s)
  -seed uint
        Seed for the random input sequence (default 1)
  -output string
        JSON report file (default: none)
  -log string
        Log file for test output (default: loadtest_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Test with default settings
  go run ./cmd/loadtest

  # Many short-lived sessions against another host
  go run ./cmd/loadtest -sessions 500 -changes 5 -url http://localhost:9000

  # Keep a report
  go run ./cmd/loadtest -output reports/run.json -verbose
`)
}
