package metrics_test

import (
	"net/http/httptest"
	"testing"

	"github.com/strayfire/chaos/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsHelpers(t *testing.T) {
	Convey("Given the metrics package", t, func() {
		Convey("Recording helpers do not panic", func() {
			So(func() {
				metrics.RecordEventLoaded("kill")
				metrics.RecordEventDropped("malformed")
				metrics.RecordEventDropped("below_threshold")
				metrics.RecordWindowSeeded()
				metrics.RecordWindowsMerged(3)
				metrics.RecordHighlightExported(42.5)
				metrics.RecordStageDuration("correlate", 0.12)
				metrics.RecordStageFailure("analyze")
				metrics.UpdateVideosTotal(7)
				metrics.WorkerStarted()
				metrics.WorkerFinished()
			}, ShouldNotPanic)
		})

		Convey("Handler serves the exposition format", func() {
			metrics.RecordEventLoaded("audio_spike")

			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/metrics", nil)
			metrics.Handler().ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, 200)
			So(rec.Body.String(), ShouldContainSubstring, "chaos_events_loaded_total")
		})
	})
}
