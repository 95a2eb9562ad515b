package window_test

import (
	"context"
	"os"
	"testing"

	"github.com/strayfire/chaos/internal/domain/event"
	"github.com/strayfire/chaos/internal/domain/window"
	"github.com/strayfire/chaos/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func kill(start float64) event.Event {
	return event.Event{
		VideoID:    "match1",
		Type:       event.StreamKill,
		Start:      start,
		End:        start,
		Confidence: 0.9,
		Payload:    event.KillPayload{Killer: "ace", Victim: "mark"},
	}
}

func spike(start, energy float64) event.Event {
	return event.Event{
		VideoID:    "match1",
		Type:       event.StreamAudioSpike,
		Start:      start,
		End:        start,
		Confidence: 0.8,
		Payload:    event.AudioSpikePayload{Energy: energy},
	}
}

func transcript(start, end float64, text string) event.Event {
	return event.Event{
		VideoID:    "match1",
		Type:       event.StreamTranscript,
		Start:      start,
		End:        end,
		Confidence: 0.7,
		Payload:    event.TranscriptPayload{Text: text},
	}
}

func newStore(duration float64, evs ...event.Event) *event.Store {
	return event.NewStore(context.Background(), "match1", duration, evs)
}

func TestWindows(t *testing.T) {
	ctx := context.Background()
	eng := window.NewEngine(
		window.WithMergeGap(10),
		window.WithPadding(5, 8),
		window.WithHighEnergyThreshold(0.8),
	)

	Convey("Given a kill at t=100 and an audio spike at t=104", t, func() {
		store := newStore(600, kill(100), spike(104, 0.5))
		wins := eng.Windows(ctx, store)

		Convey("One window [95,112] with both events results", func() {
			So(wins, ShouldHaveLength, 1)
			So(wins[0].Start, ShouldEqual, 95.0)
			So(wins[0].End, ShouldEqual, 112.0)
			So(wins[0].Events, ShouldHaveLength, 2)
		})
	})

	Convey("Given two kills at t=50 and t=53", t, func() {
		store := newStore(600, kill(50), kill(53))
		wins := eng.Windows(ctx, store)

		Convey("The second anchor is absorbed into one window [45,61]", func() {
			So(wins, ShouldHaveLength, 1)
			So(wins[0].Start, ShouldEqual, 45.0)
			So(wins[0].End, ShouldEqual, 61.0)
			So(wins[0].Events, ShouldHaveLength, 2)
		})
	})

	Convey("Given two kills far apart", t, func() {
		store := newStore(600, kill(50), kill(200))
		wins := eng.Windows(ctx, store)

		Convey("Two separate windows result", func() {
			So(wins, ShouldHaveLength, 2)
			So(wins[0].Start, ShouldEqual, 45.0)
			So(wins[1].Start, ShouldEqual, 195.0)
		})
	})

	Convey("Given an anchor at t=0", t, func() {
		store := newStore(600, kill(0))
		wins := eng.Windows(ctx, store)

		Convey("The window start clamps to zero, never negative", func() {
			So(wins, ShouldHaveLength, 1)
			So(wins[0].Start, ShouldEqual, 0.0)
			So(wins[0].End, ShouldEqual, 8.0)
		})
	})

	Convey("Given an anchor within padding of the video end", t, func() {
		store := newStore(100, kill(97))
		wins := eng.Windows(ctx, store)

		Convey("The window end clamps to the duration exactly", func() {
			So(wins, ShouldHaveLength, 1)
			So(wins[0].End, ShouldEqual, 100.0)
		})
	})

	Convey("Given only non-anchor events", t, func() {
		store := newStore(600,
			transcript(10, 12, "nice one"),
			spike(40, 0.5), // below the high-energy threshold
		)
		wins := eng.Windows(ctx, store)

		Convey("No window is manufactured", func() {
			So(wins, ShouldBeEmpty)
		})
	})

	Convey("Given a high-energy audio spike", t, func() {
		store := newStore(600, spike(300, 0.95))
		wins := eng.Windows(ctx, store)

		Convey("It seeds a window on its own", func() {
			So(wins, ShouldHaveLength, 1)
			So(wins[0].Start, ShouldEqual, 295.0)
		})
	})

	Convey("Given a non-anchor transcript trailing a kill within the merge gap", t, func() {
		store := newStore(600, kill(100), transcript(112, 115, "let's go"))
		wins := eng.Windows(ctx, store)

		Convey("The transcript extends the window boundary", func() {
			So(wins, ShouldHaveLength, 1)
			So(wins[0].End, ShouldEqual, 123.0)
			So(wins[0].Events, ShouldHaveLength, 2)
		})
	})

	Convey("Given an empty store", t, func() {
		store := newStore(600)

		Convey("Zero windows result, not an error", func() {
			So(eng.Windows(ctx, store), ShouldBeEmpty)
		})
	})
}

func TestOverlap(t *testing.T) {
	Convey("Given two windows", t, func() {
		a := window.Window{Start: 10, End: 20}

		Convey("Sharing a range means overlap", func() {
			b := window.Window{Start: 15, End: 30}
			So(a.Overlaps(b), ShouldBeTrue)
			So(b.Overlaps(a), ShouldBeTrue)
			So(a.OverlapFraction(b), ShouldEqual, 0.5)
		})

		Convey("Touching boundaries is not overlap", func() {
			b := window.Window{Start: 20, End: 30}
			So(a.Overlaps(b), ShouldBeFalse)
			So(a.OverlapFraction(b), ShouldEqual, 0)
		})

		Convey("Disjoint windows do not overlap", func() {
			b := window.Window{Start: 40, End: 50}
			So(a.Overlaps(b), ShouldBeFalse)
		})
	})
}
