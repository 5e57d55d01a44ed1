package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/epidash/internal/loadtest"
	"github.com/okian/epidash/pkg/logger"
)

// Default configuration constants.
const (
	defaultSessions    = 50
	defaultChanges     = 20
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:8050", "Base URL of the service")
		sessions    = flag.Int("sessions", defaultSessions, "Number of concurrent sessions")
		changes     = flag.Int("changes", defaultChanges, "Input changes submitted per session")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		pollTimeout = flag.Duration("poll-timeout", defaultTimeout, "How long to wait for each session's last version")
		seed        = flag.Uint64("seed", 1, "Seed for the random input sequence")
		outputFile  = flag.String("output", "", "JSON report file")
		logFile     = flag.String("log", "", "Log file for test output (default: loadtest_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp(os.Stdout)
		return
	}

	closer, err := loadtest.SetupLogging(*logFile, "text")
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:     *baseURL,
		Sessions:    *sessions,
		Changes:     *changes,
		Workers:     max(*workers, 1),
		Timeout:     *timeout,
		PollTimeout: *pollTimeout,
		Seed:        *seed,
		OutputFile:  *outputFile,
		LogFile:     *logFile,
		Verbose:     *verbose,
	}

	if _, err := loadtest.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		closer.Close()
		os.Exit(1)
	}
}
