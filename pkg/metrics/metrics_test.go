package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it uses the turf namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "turf")
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("custom"),
				WithSubsystem("tracker"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithRefreshInterval(time.Second),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.runsStarted.Inc()

			Convey("Then metric names and labels follow the options", func() {
				So(manager.RefreshInterval(), ShouldEqual, time.Second)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "custom_tracker_runs_started_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When options are empty or invalid", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(-time.Second),
				WithConstLabels(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "turf")
				So(manager.histogramBuckets, ShouldResemble, defaultBuckets)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
				So(manager.constLabels, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording run lifecycle metrics", func() {
			before := testutil.ToFloat64(globalManager.runsStarted)
			RecordRunStarted()
			RecordRunStarted()

			Convey("Then counters move", func() {
				So(testutil.ToFloat64(globalManager.runsStarted), ShouldEqual, before+2)
			})

			Convey("And ended runs are split by territory", func() {
				claimed := testutil.ToFloat64(globalManager.runsEnded.WithLabelValues("claimed"))
				RecordRunEnded(1200, true)
				RecordRunEnded(12, false)
				So(testutil.ToFloat64(globalManager.runsEnded.WithLabelValues("claimed")), ShouldEqual, claimed+1)
			})

			Convey("And point metrics do not panic", func() {
				So(func() {
					RecordPointAdded()
					RecordPointRejected("invalid_coordinate")
					RecordDuplicatePoint()
					RecordRunForceEnded()
					UpdateTotalRuns(7)
				}, ShouldNotPanic)
				So(testutil.ToFloat64(globalManager.totalRuns), ShouldEqual, 7)
			})
		})

		Convey("When recording leaderboard metrics", func() {
			So(func() {
				RecordAggregationLatency("daily", 3*time.Millisecond)
				RecordLeaderboardPublish("websocket", "weekly")
				RecordPublishFailure("redis")
				UpdateConnectedClients("all-time", 3)
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.connectedClients.WithLabelValues("all-time")), ShouldEqual, 3)
		})

		Convey("When recording queue, worker and store metrics", func() {
			UpdateQueueSize(4)
			UpdateQueueCapacity(1024)
			UpdateWorkerCount(2)
			So(func() {
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerActiveCount(1)
				RecordWorkerProcessingLatency(time.Millisecond)
				RecordWorkerError()
				RecordStoreLatency("memory", "save", time.Microsecond)
				RecordErrorByComponent("worker", "refresh_failed")
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 4)
			So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 1024)
			So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 2)
		})

		Convey("When recording HTTP and system metrics", func() {
			RecordHTTPRequest("/runs/{runId}/points", "POST", "201", 4*time.Millisecond)
			UpdateSystemMemoryUsage(1 << 20)
			UpdateSystemGoroutineCount(12)
			RecordSystemGCPauseTime(0.4)

			Convey("Then they are exposed on the custom registry", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				joined := strings.Join(names, ",")
				So(joined, ShouldContainSubstring, "turf_http_requests_total")
				So(joined, ShouldContainSubstring, "turf_system_goroutine_count")
				So(SystemRefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent recorders", t, func() {
		before := testutil.ToFloat64(globalManager.pointsAdded)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					RecordPointAdded()
					UpdateQueueSize(j)
					RecordHTTPRequest("/leaderboard", "GET", "200", time.Duration(j)*time.Microsecond)
				}
			}()
		}
		wg.Wait()

		Convey("Then every increment is counted", func() {
			So(testutil.ToFloat64(globalManager.pointsAdded), ShouldEqual, before+1000)
		})
	})
}
