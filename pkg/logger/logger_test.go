package logger_test

import (
	"context"
	"testing"

	"github.com/strayfire/chaos/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("Get returns a non-nil logger", func() {
			So(logger.Get(), ShouldNotBeNil)
		})

		Convey("Named returns a distinct child logger", func() {
			named := logger.Named("windowing")
			So(named, ShouldNotBeNil)
			So(named, ShouldNotEqual, logger.Get())
		})

		Convey("Logging does not panic with mixed fields", func() {
			ctx := context.Background()
			l := logger.Get()
			So(func() {
				l.Info(ctx, "store built",
					logger.String("video", "match1.mp4"),
					logger.Int("events", 42),
					logger.Float64("duration", 613.2),
				)
				l.Debug(ctx, "debug line")
				l.Warn(ctx, "warn line", logger.Any("tags", []string{"multi-kill"}))
			}, ShouldNotPanic)
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("Valid levels are accepted", func() {
			for _, lvl := range []string{"debug", "info", "warn", "warning", "error", ""} {
				So(logger.SetLevelString(lvl), ShouldBeNil)
			}
		})

		Convey("Mixed case is accepted", func() {
			So(logger.SetLevelString(" DEBUG "), ShouldBeNil)
		})

		Convey("Unknown levels are rejected", func() {
			So(logger.SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}
