package rank_test

import (
	"context"
	"os"
	"testing"

	"github.com/strayfire/chaos/internal/domain/event"
	"github.com/strayfire/chaos/internal/domain/rank"
	"github.com/strayfire/chaos/internal/domain/scoring"
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

func kill(id string, start, conf float64) event.Event {
	return event.Event{
		ID: id, Type: event.StreamKill, Start: start, End: start, Confidence: conf,
		Payload: event.KillPayload{Killer: "ace", Victim: "mark"},
	}
}

func spike(id string, start, conf, energy float64) event.Event {
	return event.Event{
		ID: id, Type: event.StreamAudioSpike, Start: start, End: start, Confidence: conf,
		Payload: event.AudioSpikePayload{Energy: energy},
	}
}

// scoredWindow builds a window over evs and scores it with the given scorer.
func scoredWindow(scorer *scoring.Scorer, start, end float64, evs ...event.Event) window.Window {
	w := window.Window{VideoID: "match1", Start: start, End: end, Events: evs}
	scorer.Score(context.Background(), &w)
	return w
}

func TestRank(t *testing.T) {
	ctx := context.Background()
	scorer := scoring.NewScorer()

	Convey("Given non-overlapping scored windows", t, func() {
		ranker := rank.NewRanker(scorer)
		low := scoredWindow(scorer, 10, 25, kill("e1", 15, 0.5))
		high := scoredWindow(scorer, 100, 120, kill("e2", 105, 0.9), spike("e3", 107, 0.9, 1.0))

		out := ranker.Rank(ctx, []window.Window{low, high})

		Convey("Output is ordered by descending score", func() {
			So(out, ShouldHaveLength, 2)
			So(out[0].Score, ShouldBeGreaterThan, out[1].Score)
			So(out[0].Start, ShouldEqual, 100.0)
		})

		Convey("No two output windows overlap", func() {
			So(out[0].Overlaps(out[1]), ShouldBeFalse)
		})
	})

	Convey("Given two overlapping windows sharing an event", t, func() {
		ranker := rank.NewRanker(scorer)
		shared := kill("shared", 100, 0.9)
		a := scoredWindow(scorer, 95, 112, shared, spike("s1", 104, 0.8, 0.9))
		b := scoredWindow(scorer, 105, 125, shared, kill("k2", 110, 0.9))

		out := ranker.Rank(ctx, []window.Window{a, b})

		Convey("They merge into one union window", func() {
			So(out, ShouldHaveLength, 1)
			So(out[0].Start, ShouldEqual, 95.0)
			So(out[0].End, ShouldEqual, 125.0)
		})

		Convey("The shared event is deduplicated, score recomputed not summed", func() {
			So(out[0].Events, ShouldHaveLength, 3)

			union := scoredWindow(scorer, 95, 125, shared, spike("s1", 104, 0.8, 0.9), kill("k2", 110, 0.9))
			So(out[0].Score, ShouldAlmostEqual, union.Score, 1e-9)
			So(out[0].Score, ShouldBeLessThan, a.Score+b.Score)
		})
	})

	Convey("Given a chain of overlapping windows", t, func() {
		ranker := rank.NewRanker(scorer)
		a := scoredWindow(scorer, 0, 12, kill("c1", 5, 0.9))
		b := scoredWindow(scorer, 10, 22, kill("c2", 15, 0.9))
		c := scoredWindow(scorer, 20, 32, kill("c3", 25, 0.9))

		out := ranker.Rank(ctx, []window.Window{c, a, b})

		Convey("All collapse into a single window spanning the chain", func() {
			So(out, ShouldHaveLength, 1)
			So(out[0].Start, ShouldEqual, 0.0)
			So(out[0].End, ShouldEqual, 32.0)
			So(out[0].Events, ShouldHaveLength, 3)
			So(out[0].Tags, ShouldContain, scoring.TagMultiKill)
		})
	})

	Convey("Ranking twice yields an identical final list", t, func() {
		ranker := rank.NewRanker(scorer)
		wins := []window.Window{
			scoredWindow(scorer, 95, 112, kill("i1", 100, 0.9)),
			scoredWindow(scorer, 105, 125, kill("i2", 110, 0.9)),
			scoredWindow(scorer, 300, 320, kill("i3", 305, 0.8), spike("i4", 307, 0.9, 1.0)),
		}

		first := ranker.Rank(ctx, wins)
		second := ranker.Rank(ctx, first)

		So(second, ShouldHaveLength, len(first))
		for i := range first {
			So(second[i].Start, ShouldEqual, first[i].Start)
			So(second[i].End, ShouldEqual, first[i].End)
			So(second[i].Score, ShouldAlmostEqual, first[i].Score, 1e-9)
		}
	})

	Convey("Given a cap of one and two non-mergeable windows", t, func() {
		ranker := rank.NewRanker(scorer, rank.WithMaxPerVideo(1))
		weak := scoredWindow(scorer, 10, 25, kill("w1", 15, 0.5))
		strong := scoredWindow(scorer, 100, 120, kill("w2", 105, 0.9), spike("w3", 107, 0.9, 1.0))

		out := ranker.Rank(ctx, []window.Window{weak, strong})

		Convey("Only the higher-scoring window survives", func() {
			So(out, ShouldHaveLength, 1)
			So(out[0].Start, ShouldEqual, 100.0)
		})
	})

	Convey("Given a min score floor", t, func() {
		ranker := rank.NewRanker(scorer, rank.WithMinScore(1000))
		w := scoredWindow(scorer, 10, 25, kill("f1", 15, 0.5))

		out := ranker.Rank(ctx, []window.Window{w})
		So(out, ShouldBeEmpty)
	})

	Convey("Given equal scores, the earlier window ranks first", t, func() {
		ranker := rank.NewRanker(scorer)
		early := scoredWindow(scorer, 10, 25, kill("t1", 15, 0.7))
		late := scoredWindow(scorer, 200, 215, kill("t2", 205, 0.7))

		out := ranker.Rank(ctx, []window.Window{late, early})

		So(out, ShouldHaveLength, 2)
		So(out[0].Start, ShouldEqual, 10.0)
	})

	Convey("Given a window with zero events", t, func() {
		ranker := rank.NewRanker(scorer)
		out := ranker.Rank(ctx, []window.Window{{VideoID: "match1", Start: 1, End: 2}})

		Convey("It is dropped, not treated as an error", func() {
			So(out, ShouldBeEmpty)
		})
	})

	Convey("Given an empty candidate list", t, func() {
		ranker := rank.NewRanker(scorer)
		So(ranker.Rank(ctx, nil), ShouldBeEmpty)
	})

	Convey("Given an overlap fraction above the actual overlap", t, func() {
		ranker := rank.NewRanker(scorer, rank.WithOverlapFraction(0.9))
		a := scoredWindow(scorer, 0, 100, kill("o1", 5, 0.9))
		b := scoredWindow(scorer, 95, 200, kill("o2", 105, 0.9))

		out := ranker.Rank(ctx, []window.Window{a, b})

		Convey("Slightly overlapping windows stay separate", func() {
			So(out, ShouldHaveLength, 2)
		})
	})
}
