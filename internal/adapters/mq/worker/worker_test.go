package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	queue "github.com/okian/epidash/internal/adapters/mq/queue"
	worker "github.com/okian/epidash/internal/adapters/mq/worker"
	"github.com/okian/epidash/internal/domain/figure"
	model "github.com/okian/epidash/internal/domain/model"
	logging "github.com/okian/epidash/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logging.Init()
	goleak.VerifyTestMain(m)
}

// Mock implementations for testing.
type mockQueue struct {
	changes chan worker.Change
	once    sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{changes: make(chan worker.Change, 10)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan worker.Change {
	return mq.changes
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.changes) })
	return nil
}

type mockRenderer struct {
	mu     sync.Mutex
	errors map[string]error
	calls  int
}

func newMockRenderer() *mockRenderer {
	return &mockRenderer{errors: make(map[string]error)}
}

func (mr *mockRenderer) Render(ctx context.Context, in model.Inputs) (figure.Figures, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.calls++
	if err, ok := mr.errors[in.Country]; ok {
		return figure.Figures{}, err
	}
	return figure.Figures{Inputs: in, Country: in.Country}, nil
}

func (mr *mockRenderer) setError(country string, err error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.errors[country] = err
}

type published struct {
	version uint64
	figs    figure.Figures
}

type mockPublisher struct {
	mu     sync.Mutex
	latest map[string]published
	errors map[string]error
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{
		latest: make(map[string]published),
		errors: make(map[string]error),
	}
}

func (mp *mockPublisher) Publish(ctx context.Context, sessionID string, version uint64, figs figure.Figures) (bool, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if err, ok := mp.errors[sessionID]; ok {
		return false, err
	}
	if cur, ok := mp.latest[sessionID]; ok && cur.version >= version {
		return false, nil
	}
	mp.latest[sessionID] = published{version: version, figs: figs}
	return true, nil
}

func (mp *mockPublisher) get(sessionID string) (published, bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	p, ok := mp.latest[sessionID]
	return p, ok
}

func (mp *mockPublisher) setError(sessionID string, err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.errors[sessionID] = err
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func change(session string, version uint64, country string) worker.Change {
	return worker.Change{SessionID: session, Version: version, Inputs: model.Inputs{EndOffset: 3, Country: country}}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		q := newMockQueue()
		renderer := newMockRenderer()
		publisher := newMockPublisher()

		convey.Convey("When creating a worker with options", func() {
			w := worker.NewInMemoryWorker(q, renderer, publisher, worker.WithName("test-worker"), worker.WithLogger(logging.Get()))
			convey.So(w, convey.ShouldNotBeNil)
			convey.So(w.Processed(), convey.ShouldEqual, 0)
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, renderer, publisher)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And a change arrives", func() {
				q.changes <- change("s1", 1, "Chile")

				convey.Convey("Then its figures are published to the session", func() {
					convey.So(eventually(func() bool { _, ok := publisher.get("s1"); return ok }), convey.ShouldBeTrue)
					p, _ := publisher.get("s1")
					convey.So(p.version, convey.ShouldEqual, 1)
					convey.So(p.figs.Country, convey.ShouldEqual, "Chile")
					convey.So(eventually(func() bool { return w.Processed() == 1 }), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And an older change arrives after a newer one", func() {
				q.changes <- change("s1", 2, "Peru")
				q.changes <- change("s1", 1, "Chile")

				convey.Convey("Then the newer figures stay published", func() {
					convey.So(eventually(func() bool {
						renderer.mu.Lock()
						defer renderer.mu.Unlock()
						return renderer.calls == 2
					}), convey.ShouldBeTrue)
					p, _ := publisher.get("s1")
					convey.So(p.version, convey.ShouldEqual, 2)
					convey.So(p.figs.Country, convey.ShouldEqual, "Peru")
				})
			})

			convey.Convey("And rendering fails", func() {
				renderer.setError("Atlantis", errors.New("render error"))
				q.changes <- change("s2", 1, "Atlantis")
				q.changes <- change("s3", 1, "Chile")

				convey.Convey("Then nothing is published for it and the worker carries on", func() {
					convey.So(eventually(func() bool { _, ok := publisher.get("s3"); return ok }), convey.ShouldBeTrue)
					_, ok := publisher.get("s2")
					convey.So(ok, convey.ShouldBeFalse)
				})
			})

			convey.Convey("And the session is gone", func() {
				publisher.setError("s4", fmt.Errorf("lookup: %w", worker.ErrSessionGone))
				q.changes <- change("s4", 1, "Chile")
				q.changes <- change("s5", 1, "Chile")

				convey.Convey("Then the change is dropped", func() {
					convey.So(eventually(func() bool { _, ok := publisher.get("s5"); return ok }), convey.ShouldBeTrue)
					convey.So(eventually(func() bool { return w.Processed() == 1 }), convey.ShouldBeTrue)
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()

				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue closes", func() {
			w := worker.NewInMemoryWorker(q, renderer, publisher)
			done := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(done)
			}()
			_ = q.Close()

			convey.Convey("Then the worker exits", func() {
				select {
				case <-done:
					convey.So(true, convey.ShouldBeTrue)
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over the coalescing queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		renderer := newMockRenderer()
		publisher := newMockPublisher()

		convey.Convey("When created with a default count", func() {
			pool := worker.NewPool(0, q, renderer, publisher)
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			_ = q.Close()
		})

		convey.Convey("When processing changes from many sessions", func() {
			pool := worker.NewPool(3, q, renderer, publisher)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			for s := 0; s < 5; s++ {
				for v := uint64(1); v <= 20; v++ {
					convey.So(q.Enqueue(ctx, change(fmt.Sprintf("s%d", s), v, fmt.Sprintf("c%d", v))), convey.ShouldBeTrue)
				}
			}

			convey.Convey("Then every session ends on its latest inputs", func() {
				for s := 0; s < 5; s++ {
					id := fmt.Sprintf("s%d", s)
					convey.So(eventually(func() bool {
						p, ok := publisher.get(id)
						return ok && p.version == 20
					}), convey.ShouldBeTrue)
					p, _ := publisher.get(id)
					convey.So(p.figs.Country, convey.ShouldEqual, "c20")
				}
				convey.So(eventually(func() bool { return pool.Processed() >= 5 }), convey.ShouldBeTrue)
			})

			convey.Convey("And shutdown drains the queue", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
				defer shutdownCancel()
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(q.Len(ctx), convey.ShouldEqual, 0)
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When stopping a worker pool", func() {
			pool := worker.NewPool(2, q, renderer, publisher)
			ctx, cancel := context.WithCancel(context.Background())
			pool.Start(ctx)
			pool.Stop()
			pool.Stop()
			cancel()
			_ = q.Close()
			convey.So(pool.Size(), convey.ShouldEqual, 2)
		})
	})
}
