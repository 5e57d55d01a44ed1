package service_test

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/epidash/internal/app"
	"github.com/okian/epidash/internal/domain/aggregate"
	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/logger"
	"github.com/okian/epidash/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with custom options", t, func() {
		svc := service.New(fixture(),
			service.WithWorkerCount(2),
			service.WithQueueSize(16),
			service.WithMemoSize(8),
			service.WithShardCount(2),
			service.WithSessionTTL(time.Minute),
			service.WithChartSize(320, 200),
			service.WithLogger(logger.Get()),
		)

		Convey("Then its stats describe the dataset", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["rows"], ShouldEqual, 4)
			So(stats["countries"], ShouldEqual, 2)
			So(stats["days"], ShouldEqual, 3)
		})

		Convey("Then the options come from the dataset", func() {
			So(svc.Options(context.Background()).Countries, ShouldHaveLength, 3)
		})
	})

	Convey("Given a service without a dataset", t, func() {
		svc := service.New(nil)
		_, err := svc.Render(context.Background(), model.Inputs{})
		So(errors.Is(err, model.ErrEmptyDataset), ShouldBeTrue)
	})
}

func TestService_Render(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New(fixture(), service.WithMemoSize(4))
		ctx := context.Background()

		Convey("When the same inputs are rendered twice", func() {
			before, _ := metrics.Value("epidash_dashboard_renders_total")
			first, err := svc.Render(ctx, model.Inputs{StartOffset: 0, EndOffset: 2})
			So(err, ShouldBeNil)
			second, err := svc.Render(ctx, model.Inputs{StartOffset: 0, EndOffset: 2, Country: " All "})
			So(err, ShouldBeNil)

			Convey("Then the second one comes from the cache", func() {
				after, _ := metrics.Value("epidash_dashboard_renders_total")
				So(after-before, ShouldEqual, 1)
				So(second, ShouldResemble, first)
				So(svc.GetStats()["memoEntries"], ShouldEqual, int64(1))
			})
		})

		Convey("When many goroutines ask for the same inputs", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 16)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := svc.Render(ctx, model.Inputs{StartOffset: 1, EndOffset: 2, Country: "Bosk"})
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)

			Convey("Then they all succeed", func() {
				for err := range errs {
					So(err, ShouldBeNil)
				}
			})
		})

		Convey("When the offsets are out of range", func() {
			_, err := svc.Render(ctx, model.Inputs{StartOffset: -1, EndOffset: 2})
			So(errors.Is(err, model.ErrOffsetOutOfRange), ShouldBeTrue)
		})
	})
}

func TestService_Chart(t *testing.T) {
	Convey("Given a service with small charts", t, func() {
		svc := service.New(fixture(), service.WithChartSize(320, 200))
		ctx := context.Background()

		Convey("When drawing the cases chart", func() {
			var buf bytes.Buffer
			So(svc.Chart(ctx, &buf, aggregate.Cases, model.Inputs{EndOffset: 2}), ShouldBeNil)

			Convey("Then the output is a PNG of that size", func() {
				img, err := png.Decode(&buf)
				So(err, ShouldBeNil)
				So(img.Bounds().Dx(), ShouldEqual, 320)
				So(img.Bounds().Dy(), ShouldEqual, 200)
			})
		})

		Convey("When the metric is unknown", func() {
			err := svc.Chart(ctx, &bytes.Buffer{}, aggregate.Metric("recovered"), model.Inputs{})
			So(errors.Is(err, service.ErrUnknownMetric), ShouldBeTrue)
		})
	})
}

func TestService_Sessions(t *testing.T) {
	Convey("Given a service that is not started", t, func() {
		svc := service.New(fixture())
		ctx := context.Background()

		_, err := svc.NewSession(ctx)
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		_, err = svc.Submit(ctx, "x", model.Inputs{})
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		So(svc.EndSession(ctx, "x"), ShouldBeFalse)
	})

	Convey("Given a started service", t, func() {
		svc := service.New(fixture(), service.WithWorkerCount(2), service.WithQueueSize(8))
		ctx, cancel := context.WithCancel(context.Background())
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() {
			svc.Stop()
			svc.Stop()
			cancel()
		})

		id, err := svc.NewSession(ctx)
		So(err, ShouldBeNil)
		So(id, ShouldNotBeBlank)

		Convey("Then a new session has nothing published", func() {
			snap, err := svc.Snapshot(ctx, id)
			So(err, ShouldBeNil)
			So(snap.Ready(), ShouldBeFalse)
			So(svc.GetStats()["sessions"], ShouldEqual, 1)
		})

		Convey("When inputs change rapidly", func() {
			var last uint64
			for end := 0; end <= 2; end++ {
				v, err := svc.Submit(ctx, id, model.Inputs{StartOffset: 0, EndOffset: end, Country: "Aland"})
				So(err, ShouldBeNil)
				So(v, ShouldBeGreaterThan, last)
				last = v
			}

			Convey("Then the latest inputs are eventually published", func() {
				So(eventually(func() bool {
					snap, err := svc.Snapshot(ctx, id)
					return err == nil && snap.Version == last
				}), ShouldBeTrue)
				snap, _ := svc.Snapshot(ctx, id)
				So(snap.Figures.Inputs.EndOffset, ShouldEqual, 2)
				So(snap.Figures.Country, ShouldEqual, "Aland")
			})
		})

		Convey("When the inputs are invalid", func() {
			_, err := svc.Submit(ctx, id, model.Inputs{StartOffset: 0, EndOffset: 99})
			So(errors.Is(err, model.ErrOffsetOutOfRange), ShouldBeTrue)
		})

		Convey("When the session is unknown", func() {
			_, err := svc.Submit(ctx, "nope", model.Inputs{})
			So(errors.Is(err, service.ErrUnknownSession), ShouldBeTrue)
			_, err = svc.Snapshot(ctx, "nope")
			So(errors.Is(err, service.ErrUnknownSession), ShouldBeTrue)
		})

		Convey("When the session ends", func() {
			So(svc.EndSession(ctx, id), ShouldBeTrue)
			_, err := svc.Snapshot(ctx, id)
			So(errors.Is(err, service.ErrUnknownSession), ShouldBeTrue)
		})
	})
}
