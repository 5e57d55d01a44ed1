// Package service wires the dataset, the render pipeline and the session
// machinery behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/okian/epidash/internal/adapters/chartpng"
	changequeue "github.com/okian/epidash/internal/adapters/mq/queue"
	workerpool "github.com/okian/epidash/internal/adapters/mq/worker"
	repository "github.com/okian/epidash/internal/adapters/repository"
	"github.com/okian/epidash/internal/domain/aggregate"
	"github.com/okian/epidash/internal/domain/figure"
	"github.com/okian/epidash/internal/domain/memo"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/internal/domain/query"
	"github.com/okian/epidash/pkg/logger"
	"github.com/okian/epidash/pkg/metrics"
)

const stopTimeout = 10 * time.Second

// storePublisher adapts the session store to workerpool.Publisher.
type storePublisher struct {
	store repository.Store
}

func (p *storePublisher) Publish(ctx context.Context, sessionID string, version uint64, figs figure.Figures) (bool, error) {
	ok, err := p.store.Publish(ctx, sessionID, version, figs)
	if errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("%w: %w", workerpool.ErrSessionGone, err)
	}
	return ok, err
}

// Service implements the API dependencies for the dashboard.
type Service struct {
	mu sync.RWMutex

	ds       *model.Dataset
	controls Controls

	// Core components
	memo     memo.Cache
	renders  singleflight.Group
	charts   *chartpng.Renderer
	sessions repository.Store
	changes  changequeue.Queue
	pool     *workerpool.Pool

	// Configuration
	workerCount int
	queueSize   int
	memoSize    int
	shardCount  int
	sessionTTL  time.Duration
	chartWidth  int
	chartHeight int

	// State
	started bool
	version atomic.Uint64

	logger logger.Logger
}

// New constructs a Service over ds with default configuration.
func New(ds *model.Dataset, opts ...Option) *Service {
	if ds == nil {
		ds = model.NewBuilder(0).Build()
	}
	s := &Service{
		ds:          ds,
		workerCount: runtime.NumCPU(),
		queueSize:   10000,
		memoSize:    1024,
		shardCount:  32,
		sessionTTL:  30 * time.Minute,
		chartWidth:  chartpng.DefaultWidth,
		chartHeight: chartpng.DefaultHeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.controls = BuildControls(ds)
	s.memo = memo.NewInMemoryCache(memo.WithMaxSize(s.memoSize))
	s.charts = chartpng.New(chartpng.WithSize(s.chartWidth, s.chartHeight))
	return s
}

// Dataset returns the dataset the service renders from.
func (s *Service) Dataset() *model.Dataset { return s.ds }

// Options returns the control metadata for clients.
func (s *Service) Options(ctx context.Context) Controls { return s.controls }

// Render returns the figures for in. Results are cached by normalised
// inputs and concurrent identical requests share one computation.
func (s *Service) Render(ctx context.Context, in model.Inputs) (figure.Figures, error) {
	in = in.Normalize()
	key := in.Key()
	if figs, ok := s.memo.Get(ctx, key); ok {
		return figs, nil
	}

	v, err, shared := s.renders.Do(key, func() (interface{}, error) {
		start := time.Now()
		figs, err := Render(s.ds, in)
		if err != nil {
			return nil, err
		}
		s.memo.Put(ctx, key, figs)
		metrics.RecordRender(float64(time.Since(start).Microseconds())/1000, figs.Rows)
		return figs, nil
	})
	if shared {
		metrics.RecordRenderShared()
	}
	if err != nil {
		metrics.RecordRenderError(renderErrorKind(err))
		return figure.Figures{}, fmt.Errorf("render %s: %w", key, err)
	}
	return v.(figure.Figures), nil
}

func renderErrorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrOffsetOutOfRange):
		return "offset_out_of_range"
	case errors.Is(err, model.ErrEmptyDataset):
		return "empty_dataset"
	default:
		return "internal"
	}
}

// Chart writes the daily line chart of metric as a PNG.
func (s *Service) Chart(ctx context.Context, w io.Writer, metric aggregate.Metric, in model.Inputs) error {
	if !metric.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	figs, err := s.Render(ctx, in)
	if err != nil {
		return err
	}
	if err := s.charts.Render(w, figs.Line(metric), figs.Start, figs.End); err != nil {
		return err
	}
	metrics.RecordChartRender(string(metric))
	return nil
}

// Start creates the session store, the change queue and the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting dashboard service...")

	s.sessions = repository.NewSessionStore(ctx,
		repository.WithShardCount(s.shardCount),
		repository.WithSessionTTL(s.sessionTTL),
	)
	s.changes = changequeue.NewInMemoryQueue(changequeue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.changes, s, &storePublisher{store: s.sessions})
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "dashboard service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("memoSize", s.memoSize),
		logger.Duration("sessionTTL", s.sessionTTL),
	)
	return nil
}

// Stop drains pending changes and shuts the session machinery down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping dashboard service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	if err := s.sessions.Close(); err != nil {
		s.logger.Warn(ctx, "session store close", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "dashboard service stopped")
}

func (s *Service) running() (repository.Store, changequeue.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.sessions, s.changes, nil
}

// NewSession registers a session and returns its id.
func (s *Service) NewSession(ctx context.Context) (string, error) {
	store, _, err := s.running()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := store.Create(ctx, id); err != nil {
		return "", fmt.Errorf("new session: %w", err)
	}
	s.logger.Debug(ctx, "session created", logger.String("session", id))
	return id, nil
}

// Submit queues an input change for a session and returns the version the
// figures will carry once published. Offsets are checked before queueing.
func (s *Service) Submit(ctx context.Context, sessionID string, in model.Inputs) (uint64, error) {
	store, changes, err := s.running()
	if err != nil {
		return 0, err
	}
	in = in.Normalize()
	if _, err := query.FromOffsets(s.ds, in.StartOffset, in.EndOffset, in.Country); err != nil {
		return 0, err
	}
	if err := store.Touch(ctx, sessionID); err != nil {
		return 0, sessionErr(sessionID, err)
	}

	version := s.version.Add(1)
	c := model.Change{SessionID: sessionID, Version: version, Inputs: in, SubmittedAt: time.Now()}
	if !changes.Enqueue(ctx, c) {
		if changes.IsClosed() {
			return 0, ErrNotStarted
		}
		return 0, fmt.Errorf("submit %s: %w", sessionID, ErrBackpressure)
	}

	s.logger.Debug(ctx, "change queued",
		logger.String("session", sessionID),
		logger.Int64("version", int64(version)),
		logger.String("inputs", in.Key()),
	)
	return version, nil
}

// Snapshot returns the latest published figures of a session.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (repository.Snapshot, error) {
	store, _, err := s.running()
	if err != nil {
		return repository.Snapshot{}, err
	}
	snap, err := store.Get(ctx, sessionID)
	if err != nil {
		return repository.Snapshot{}, sessionErr(sessionID, err)
	}
	return snap, nil
}

// EndSession drops a session. Returns false if it was unknown.
func (s *Service) EndSession(ctx context.Context, sessionID string) bool {
	store, _, err := s.running()
	if err != nil {
		return false
	}
	return store.Delete(ctx, sessionID)
}

func sessionErr(id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"memoSize":    s.memoSize,
		"memoEntries": s.memo.Size(),
		"rows":        s.ds.Len(),
		"countries":   s.ds.NumCountries(),
		"days":        s.ds.NumDays(),
	}

	if s.started {
		queueLen := s.changes.Len(ctx)
		sessions := s.sessions.Count(ctx)

		stats["queueLength"] = queueLen
		stats["sessions"] = sessions
		stats["processed"] = s.pool.Processed()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateSessionsActive(sessions)
	}

	return stats
}

var _ workerpool.Renderer = (*Service)(nil)
