package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/epidash/internal/adapters/dataset"
	"github.com/okian/epidash/internal/adapters/http/api"
	"github.com/okian/epidash/internal/adapters/http/site"
	"github.com/okian/epidash/internal/adapters/http/swagger"
	service "github.com/okian/epidash/internal/app"
	"github.com/okian/epidash/internal/config"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/logger"
	"github.com/okian/epidash/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Initialize logging with defaults until the configured format is known.
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Get().Error(ctx, "failed to load config", logger.Error(err))
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		logger.Get().Warn(ctx, "invalid log_format; keeping text", logger.String("log_format", cfg.LogFormat), logger.Error(err))
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

// run loads the dataset, starts the service and serves HTTP until ctx ends.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	ds, err := loadDataset(ctx, cfg)
	if err != nil {
		return err
	}

	svc := newService(ds, cfg)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, cfg),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, svc)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(gctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// loadDataset reads the configured file. Any failure is fatal.
func loadDataset(ctx context.Context, cfg *config.Config) (*model.Dataset, error) {
	var opts []dataset.Option
	if cfg.DatasetSheet != "" {
		opts = append(opts, dataset.WithSheet(cfg.DatasetSheet))
	}
	if len(cfg.DateLayouts) > 0 {
		opts = append(opts, dataset.WithDateLayouts(cfg.DateLayouts...))
	}

	start := time.Now()
	ds, err := dataset.Load(ctx, cfg.DatasetPath, opts...)
	if err != nil {
		return nil, err
	}
	took := time.Since(start)
	metrics.RecordDatasetLoadDuration(took)
	metrics.UpdateDatasetShape(ds.Len(), ds.NumCountries(), ds.NumDays())

	logger.Get().Info(ctx, "dataset loaded",
		logger.String("path", cfg.DatasetPath),
		logger.Int("rows", ds.Len()),
		logger.Int("countries", ds.NumCountries()),
		logger.Int("days", ds.NumDays()),
		logger.Duration("took", took))
	return ds, nil
}

func newService(ds *model.Dataset, cfg *config.Config) *service.Service {
	return service.New(ds,
		service.WithLogger(logger.Get()),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithMemoSize(cfg.MemoSize),
		service.WithShardCount(cfg.ShardCount),
		service.WithSessionTTL(cfg.SessionTTL()),
		service.WithChartSize(cfg.ChartWidth, cfg.ChartHeight),
	)
}

// newMux registers the dashboard page, the API docs and the API.
func newMux(ctx context.Context, svc *service.Service, cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithRateLimit(cfg.RateLimit, cfg.RateBurst)).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater updates system metrics until ctx is cancelled.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater updates service metrics until ctx is cancelled.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics copies gauges out of the service stats.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if sessions, ok := stats["sessions"].(int); ok {
		metrics.UpdateSessionsActive(sessions)
	}
	if memoEntries, ok := stats["memoEntries"].(int64); ok {
		metrics.UpdateMemoSize(memoEntries)
	}
}
