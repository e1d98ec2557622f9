package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a custom registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then every metric is registered there under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.eventsLoaded.Set(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldNotBeEmpty)
				for _, f := range families {
					So(f.GetName(), ShouldStartWith, Namespace+"_")
				}
			})
		})

		Convey("When a nil registry is passed", func() {
			manager := NewManager(WithPrometheusRegistry(nil), WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then it is ignored", func() {
				So(manager.registry, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics", t, func() {
		Convey("When detection gauges are set", func() {
			SetEventsLoaded(42)
			SetCandidates("week", 7)
			SetRankedTracks(5)

			Convey("Then the gauges hold the values", func() {
				So(testutil.ToFloat64(globalManager.eventsLoaded), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.candidates.WithLabelValues("week")), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.rankedTracks), ShouldEqual, 5)
			})
		})

		Convey("When counters are incremented", func() {
			before := testutil.ToFloat64(globalManager.merges.WithLabelValues("replaced"))
			RecordMerge("replaced")
			RecordMerge("replaced")

			lookups := testutil.ToFloat64(globalManager.catalogLookups.WithLabelValues("found"))
			RecordCatalogLookup("found", 0.02)

			Convey("Then they increase", func() {
				So(testutil.ToFloat64(globalManager.merges.WithLabelValues("replaced")), ShouldEqual, before+2)
				So(testutil.ToFloat64(globalManager.catalogLookups.WithLabelValues("found")), ShouldEqual, lookups+1)
			})
		})

		Convey("When the remaining helpers are called", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					ObserveDetectionDuration(0.5)
					RecordResolution("matched")
					RecordCorrectionStored()
					RecordPublishBatch("ok")
					RecordLastfmPage()
					SetCircuitBreakerState("spotify", 2)
					RecordError("resolve", "lookup")
				}, ShouldNotPanic)
			})
		})
	})
}

func TestWriteTextfile(t *testing.T) {
	Convey("Given a target path", t, func() {
		RecordLastfmPage()
		path := filepath.Join(t.TempDir(), "earworms.prom")

		Convey("When the registry is written", func() {
			err := WriteTextfile(path)

			Convey("Then the file holds the exposition format", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(path)
				So(readErr, ShouldBeNil)
				So(strings.Contains(string(data), "earworms_lastfm_pages_total"), ShouldBeTrue)
			})
		})

		Convey("When the directory does not exist", func() {
			err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"))

			Convey("Then ErrExportFailed is returned", func() {
				So(errors.Is(err, ErrExportFailed), ShouldBeTrue)
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent updates", t, func() {
		before := testutil.ToFloat64(globalManager.correctionsStored)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				RecordCorrectionStored()
			}()
		}
		wg.Wait()

		So(testutil.ToFloat64(globalManager.correctionsStored), ShouldEqual, before+20)
	})
}
