package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/epidash/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	reportPermission    = 0600
)

// ErrVerification is returned when some session did not converge on its
// last submitted inputs.
var ErrVerification = errors.New("verification failed")

// counters are the live, concurrently updated parts of Stats.
type counters struct {
	submitted atomic.Int64
	accepted  atomic.Int64
	throttled atomic.Int64
	failed    atomic.Int64
}

// Run executes the complete load test: sessions are opened, each receives a
// burst of input changes, and every session must end up showing the figures
// for the last change it submitted.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{RunID: uuid.NewString(), StartTime: time.Now()}
	log := logger.Get().Named("loadtest").With(logger.String("run", stats.RunID))

	log.Info(ctx, "starting dashboard load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("changes", cfg.Changes),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Bool("verbose", cfg.Verbose))

	client := newHTTPClient(cfg, stats.RunID)

	// Step 1: Check service health
	if err := client.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Read the controls the inputs are drawn from
	ctrl, err := client.controls(ctx)
	if err != nil {
		return stats, fmt.Errorf("fetching controls failed: %w", err)
	}
	if ctrl.Max < ctrl.Min {
		return stats, fmt.Errorf("service has no dates to select")
	}

	// Step 3: Open sessions
	ids, err := openSessions(ctx, client, cfg)
	if err != nil {
		return stats, fmt.Errorf("session creation failed: %w", err)
	}
	stats.SessionsCreated = len(ids)

	// Step 4: Submit changes concurrently
	var c counters
	outcomes := submitChanges(ctx, client, cfg, ctrl, ids, &c, log)
	stats.ChangesSubmitted = int(c.submitted.Load())
	stats.ChangesAccepted = int(c.accepted.Load())
	stats.ChangesThrottled = int(c.throttled.Load())
	stats.ChangesFailed = int(c.failed.Load())

	// Step 5: Wait for each session to publish its last version
	verifyErr := verifyOutcomes(ctx, client, cfg, outcomes, stats, log)

	// Step 6: Close sessions
	closeSessions(ctx, client, ids, log)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if cfg.OutputFile != "" {
		if err := saveReport(cfg.OutputFile, stats); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		} else {
			log.Info(ctx, "report saved", logger.String("file", cfg.OutputFile))
		}
	}

	if verifyErr != nil {
		return stats, verifyErr
	}
	log.Info(ctx, "test completed successfully")
	return stats, nil
}

func openSessions(ctx context.Context, client *httpClient, cfg *Config) ([]string, error) {
	ids := make([]string, cfg.Sessions)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range ids {
		g.Go(func() error {
			id, err := client.createSession(gctx)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// submitChanges posts each session's changes in order. Sessions run in
// parallel, so the service sees their changes interleaved.
func submitChanges(ctx context.Context, client *httpClient, cfg *Config, ctrl controls,
	ids []string, c *counters, log logger.Logger,
) []outcome {
	outcomes := make([]outcome, len(ids))
	total := int64(len(ids) * cfg.Changes)

	var lastReport atomic.Int64
	report := func() {
		now := time.Now().UnixNano()
		last := lastReport.Load()
		if now-last < int64(progressInterval) || !lastReport.CompareAndSwap(last, now) {
			return
		}
		log.Info(ctx, "progress",
			logger.String("submitted", humanize.Comma(c.submitted.Load())+"/"+humanize.Comma(total)),
			logger.Int64("accepted", c.accepted.Load()),
			logger.Int64("throttled", c.throttled.Load()),
			logger.Int64("failed", c.failed.Load()))
	}

	var wg sync.WaitGroup
	jobs := make(chan int, cfg.Workers*WorkerChannelMultiplier)
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				gen := newInputGenerator(cfg.Seed+uint64(i), ctrl)
				outcomes[i] = outcome{sessionID: ids[i]}
				for _, body := range gen.sequence(cfg.Changes) {
					if ctx.Err() != nil {
						return
					}
					c.submitted.Add(1)
					version, err := client.submit(ctx, ids[i], body)
					switch {
					case errors.Is(err, errThrottled):
						c.throttled.Add(1)
					case err != nil:
						c.failed.Add(1)
						if cfg.Verbose {
							log.Warn(ctx, "submit failed", logger.String("session", ids[i]), logger.Error(err))
						}
					default:
						c.accepted.Add(1)
						outcomes[i].version = version
						outcomes[i].inputs = body.inputs()
					}
					report()
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range ids {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	wg.Wait()
	return outcomes
}

// verifyOutcomes polls every session until it publishes the version of its
// last accepted change, then checks the figures were rendered from that
// change's inputs.
func verifyOutcomes(ctx context.Context, client *httpClient, cfg *Config, outcomes []outcome,
	stats *Stats, log logger.Logger,
) error {
	var converged, mismatch, timedOut atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, o := range outcomes {
		if o.version == 0 {
			continue
		}
		g.Go(func() error {
			err := awaitVersion(gctx, client, cfg.PollTimeout, o)
			switch {
			case err == nil:
				converged.Add(1)
			case errors.Is(err, context.DeadlineExceeded):
				timedOut.Add(1)
				log.Warn(gctx, "session did not publish its last version", logger.String("session", o.sessionID))
			default:
				mismatch.Add(1)
				log.Warn(gctx, "session verification failed", logger.String("session", o.sessionID), logger.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.SessionsConverged = int(converged.Load())
	stats.SessionsMismatch = int(mismatch.Load())
	stats.SessionsTimedOut = int(timedOut.Load())
	if stats.SessionsMismatch > 0 || stats.SessionsTimedOut > 0 {
		return fmt.Errorf("%w: %d mismatched, %d timed out", ErrVerification, stats.SessionsMismatch, stats.SessionsTimedOut)
	}
	return nil
}

func awaitVersion(ctx context.Context, client *httpClient, timeout time.Duration, o outcome) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		resp, err := client.figures(ctx, o.sessionID)
		if err != nil && ctx.Err() == nil {
			return err
		}
		if err == nil && resp.Ready && resp.Version >= o.version {
			return checkFigures(resp, o)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func closeSessions(ctx context.Context, client *httpClient, ids []string, log logger.Logger) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := client.endSession(ctx, id); err != nil {
			log.Debug(ctx, "failed to end session", logger.String("session", id), logger.Error(err))
		}
	}
}

func saveReport(filename string, stats *Stats) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(filename, append(data, '\n'), reportPermission)
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var acceptRate, changesPerSecond float64
	if stats.ChangesSubmitted > 0 {
		acceptRate = float64(stats.ChangesAccepted) / float64(stats.ChangesSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		changesPerSecond = float64(stats.ChangesSubmitted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("sessionsCreated", stats.SessionsCreated),
		logger.Int("changesSubmitted", stats.ChangesSubmitted),
		logger.Int("changesAccepted", stats.ChangesAccepted),
		logger.Int("changesThrottled", stats.ChangesThrottled),
		logger.Int("changesFailed", stats.ChangesFailed),
		logger.Int("sessionsConverged", stats.SessionsConverged),
		logger.Int("sessionsMismatch", stats.SessionsMismatch),
		logger.Int("sessionsTimedOut", stats.SessionsTimedOut),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.String("changesPerSecond", humanize.FormatFloat("#,###.#", changesPerSecond)))
}
