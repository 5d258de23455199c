package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then metrics should be registered under the catrack namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.rebuilds.WithLabelValues("success").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["catrack_sound_baseline_rebuilds_total"], ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.baselinesTotal.Set(3)

			Convey("Then the names and constant labels should follow them", func() {
				So(testutil.ToFloat64(manager.baselinesTotal), ShouldEqual, 3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_baselines_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom score buckets", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithScoreBuckets([]float64{25, 50, 75}),
				WithPrometheusRegistry(registry),
			)
			manager.anomalyScore.Observe(60)

			Convey("Then the anomaly score histogram should use them", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var bounds []float64
				for _, f := range families {
					if f.GetName() == "catrack_sound_anomaly_score" {
						for _, b := range f.GetMetric()[0].GetHistogram().GetBucket() {
							bounds = append(bounds, b.GetUpperBound())
						}
					}
				}
				So(bounds, ShouldResemble, []float64{25, 50, 75})
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When engine metrics are recorded", func() {
			before := testutil.ToFloat64(globalManager.samplesSkipped.WithLabelValues("decode"))
			So(func() {
				RecordRebuild("success", 120)
				RecordSampleProcessed("good")
				RecordSampleSkipped("decode")
				RecordClipScored("bad", 87.5)
				RecordStageLatency("extract", 3.2)
				UpdateBaselinesTotal(2)
			}, ShouldNotPanic)

			Convey("Then counters and gauges should move", func() {
				So(testutil.ToFloat64(globalManager.samplesSkipped.WithLabelValues("decode")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.baselinesTotal), ShouldEqual, 2)
			})
		})

		Convey("When infrastructure metrics are recorded", func() {
			So(func() {
				UpdateQueueSize(3)
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(0.3)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(1)
				RecordWorkerProcessingLatency(12)
				RecordWorkerError()
				RecordHTTPRequest("/sound/check", "POST", "200")
				RecordHTTPRequestDuration("/sound/check", "POST", "200", 14)
				RecordRepositoryUpdateLatency(0.4)
				RecordRepositoryQueryLatency(0.2)
				RecordErrorByComponent("repository", "not_found")
				RecordErrorByEndpoint("/sound/check", "POST", "baseline_not_found")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)

			Convey("Then the queue gauge should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 3)
			})
		})

		Convey("Then the registry should be the custom one", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
