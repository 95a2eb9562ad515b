package event_test

import (
	"context"
	"testing"

	"github.com/strayfire/chaos/internal/domain/event"
	. "github.com/smartystreets/goconvey/convey"
)

func kill(start float64, conf float64, killer, victim string) event.Event {
	return event.Event{
		VideoID:    "match1",
		Type:       event.StreamKill,
		Start:      start,
		End:        start,
		Confidence: conf,
		Payload:    event.KillPayload{Killer: killer, Victim: victim},
	}
}

func spike(start float64, conf float64, energy float64) event.Event {
	return event.Event{
		VideoID:    "match1",
		Type:       event.StreamAudioSpike,
		Start:      start,
		End:        start,
		Confidence: conf,
		Payload:    event.AudioSpikePayload{Energy: energy},
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given events arriving out of order", t, func() {
		evs := []event.Event{
			spike(50, 0.9, 0.9),
			kill(10, 0.9, "ace", "v1"),
			kill(50, 0.9, "ace", "v2"),
		}
		store := event.NewStore(ctx, "match1", 600, evs)

		Convey("The store orders them by start time", func() {
			got := store.Events()
			So(store.Len(), ShouldEqual, 3)
			So(got[0].Start, ShouldEqual, 10.0)
			So(got[1].Start, ShouldEqual, 50.0)
			So(got[2].Start, ShouldEqual, 50.0)
		})

		Convey("Ties break by stream priority, kill before audio spike", func() {
			got := store.Events()
			So(got[1].Type, ShouldEqual, event.StreamKill)
			So(got[2].Type, ShouldEqual, event.StreamAudioSpike)
		})
	})

	Convey("Given a malformed event in the input", t, func() {
		bad := kill(30, 0.9, "ace", "v1")
		bad.End = 20

		store := event.NewStore(ctx, "match1", 600, []event.Event{
			kill(10, 0.9, "ace", "v1"),
			bad,
		})

		Convey("It is dropped, the rest survive", func() {
			So(store.Len(), ShouldEqual, 1)
			So(store.Events()[0].Start, ShouldEqual, 10.0)
		})
	})

	Convey("Given per-stream confidence thresholds", t, func() {
		store := event.NewStore(ctx, "match1", 600,
			[]event.Event{
				kill(10, 0.9, "ace", "v1"),
				kill(40, 0.3, "ace", "v2"),
				spike(60, 0.2, 0.9),
			},
			event.WithThresholds(map[event.StreamType]float64{
				event.StreamKill:       0.5,
				event.StreamAudioSpike: 0.3,
			}),
		)

		Convey("Events below their stream threshold are discarded", func() {
			So(store.Len(), ShouldEqual, 1)
			So(store.Events()[0].Confidence, ShouldEqual, 0.9)
		})
	})

	Convey("Given repeated kill-feed reads of the same kill line", t, func() {
		store := event.NewStore(ctx, "match1", 600,
			[]event.Event{
				kill(100, 0.9, "ace", "v1"),
				kill(101, 0.85, "ace", "v1"),
				kill(103, 0.8, "ace", "v1"),
				kill(120, 0.9, "ace", "v1"), // a genuinely new kill
			},
			event.WithKillMemory(7.0),
		)

		Convey("The burst collapses to one event per real kill", func() {
			So(store.Len(), ShouldEqual, 2)
			So(store.Events()[0].Start, ShouldEqual, 100.0)
			So(store.Events()[1].Start, ShouldEqual, 120.0)
		})
	})

	Convey("Given no events at all", t, func() {
		store := event.NewStore(ctx, "match1", 600, nil)

		Convey("The store is empty, not an error", func() {
			So(store.Len(), ShouldEqual, 0)
			So(store.Events(), ShouldBeEmpty)
			So(store.VideoID(), ShouldEqual, "match1")
			So(store.Duration(), ShouldEqual, 600.0)
		})
	})
}
