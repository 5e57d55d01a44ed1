package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/epidash/internal/domain/figure"
	"github.com/okian/epidash/pkg/metrics"
)

const (
	defaultShardCount    = 32
	defaultSessionTTL    = 30 * time.Minute
	defaultSweepInterval = 30 * time.Second
)

// session holds one client's snapshot. The snapshot pointer is swapped
// whole so readers never see a partially published figure set.
type session struct {
	snap     atomic.Pointer[Snapshot]
	lastSeen atomic.Int64 // unix nanos
}

func (s *session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// SessionStore is an in-memory, sharded Store. Sessions idle for longer
// than the TTL are removed by a background sweeper.
type SessionStore struct {
	shards        []*shard
	shardCount    int
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	count atomic.Int64

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSessionStore creates a store and starts its sweeper, which runs until
// ctx is done or Close is called.
func NewSessionStore(ctx context.Context, opts ...Option) *SessionStore {
	s := &SessionStore{
		shardCount:    defaultShardCount,
		ttl:           defaultSessionTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*session)}
	}

	s.startSweeper(ctx)
	return s
}

func (s *SessionStore) shardFor(id string) *shard {
	return s.shards[xxhash.Sum64String(id)%uint64(len(s.shards))]
}

func (s *SessionStore) lookup(id string) (*session, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	sess, ok := sh.sessions[id]
	sh.mu.RUnlock()
	return sess, ok
}

// Create registers a session with an empty snapshot.
func (s *SessionStore) Create(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	now := s.now()
	sess := &session{}
	sess.snap.Store(&Snapshot{SessionID: sessionID, CreatedAt: now})
	sess.touch(now)

	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	if _, ok := sh.sessions[sessionID]; ok {
		sh.mu.Unlock()
		return fmt.Errorf("create %s: %w", sessionID, ErrExists)
	}
	sh.sessions[sessionID] = sess
	sh.mu.Unlock()

	metrics.UpdateSessionsActive(int(s.count.Add(1)))
	return nil
}

// Publish swaps in figs if version is newer than the published snapshot.
func (s *SessionStore) Publish(ctx context.Context, sessionID string, version uint64, figs figure.Figures) (bool, error) {
	sess, ok := s.lookup(sessionID)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return false, fmt.Errorf("publish %s: %w", sessionID, ErrNotFound)
	}

	now := s.now()
	for {
		cur := sess.snap.Load()
		if version <= cur.Version {
			metrics.RecordSnapshotStale()
			return false, nil
		}
		next := &Snapshot{
			SessionID:   sessionID,
			Version:     version,
			Figures:     figs,
			CreatedAt:   cur.CreatedAt,
			PublishedAt: now,
		}
		if sess.snap.CompareAndSwap(cur, next) {
			metrics.RecordSnapshotPublished()
			return true, nil
		}
	}
}

// Get returns the current snapshot of a session.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (Snapshot, error) {
	sess, ok := s.lookup(sessionID)
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Snapshot{}, fmt.Errorf("get %s: %w", sessionID, ErrNotFound)
	}
	sess.touch(s.now())
	return *sess.snap.Load(), nil
}

// Touch refreshes a session's idle timer.
func (s *SessionStore) Touch(ctx context.Context, sessionID string) error {
	sess, ok := s.lookup(sessionID)
	if !ok {
		return fmt.Errorf("touch %s: %w", sessionID, ErrNotFound)
	}
	sess.touch(s.now())
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) bool {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	_, ok := sh.sessions[sessionID]
	delete(sh.sessions, sessionID)
	sh.mu.Unlock()

	if ok {
		metrics.UpdateSessionsActive(int(s.count.Add(-1)))
	}
	return ok
}

// Count returns the number of live sessions.
func (s *SessionStore) Count(ctx context.Context) int {
	return int(s.count.Load())
}

// Close stops the sweeper. It is safe to call more than once.
func (s *SessionStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// it removed.
func (s *SessionStore) Sweep() int {
	if s.ttl == 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl).UnixNano()

	var removed int
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.lastSeen.Load() < cutoff {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	// Record metrics outside of locks.
	if removed > 0 {
		metrics.RecordSessionsExpired(removed)
		s.count.Add(-int64(removed))
	}
	metrics.UpdateSessionsActive(int(s.count.Load()))
	return removed
}

func (s *SessionStore) startSweeper(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

var _ Store = (*SessionStore)(nil)
