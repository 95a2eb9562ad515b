package scoring_test

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/strayfire/chaos/internal/domain/event"
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

func kill(start, conf float64) event.Event {
	return event.Event{
		Type: event.StreamKill, Start: start, End: start, Confidence: conf,
		Payload: event.KillPayload{Killer: "ace", Victim: "mark"},
	}
}

func spike(start, conf, energy float64) event.Event {
	return event.Event{
		Type: event.StreamAudioSpike, Start: start, End: start, Confidence: conf,
		Payload: event.AudioSpikePayload{Energy: energy},
	}
}

func TestScore(t *testing.T) {
	ctx := context.Background()
	scorer := scoring.NewScorer(scoring.WithWeights(scoring.Weights{
		Kill: 10, Killstreak: 25, Chat: 25, Voice: 20, Spike: 5,
	}))

	Convey("Given a window with one kill", t, func() {
		w := &window.Window{Events: []event.Event{kill(100, 0.9)}}
		scorer.Score(ctx, w)

		Convey("The score is weight*confidence times the single-stream bonus", func() {
			want := 10 * 0.9 * (1 + math.Log(2))
			So(w.Score, ShouldAlmostEqual, want, 1e-9)
		})
	})

	Convey("Given a kill plus an audio spike", t, func() {
		w := &window.Window{Events: []event.Event{kill(100, 0.9), spike(104, 0.8, 1.0)}}
		scorer.Score(ctx, w)

		Convey("Two distinct streams earn a super-linear density bonus", func() {
			want := (10*0.9 + 5*1.0*0.8) * (1 + math.Log(3))
			So(w.Score, ShouldAlmostEqual, want, 1e-9)
			So(w.Tags, ShouldContain, scoring.TagLoudReaction)
		})
	})

	Convey("Corroboration beats repetition", t, func() {
		// three kills vs kill + chat rage + voice spike of comparable raw sum
		repeated := &window.Window{Events: []event.Event{kill(1, 0.9), kill(2, 0.9), kill(3, 0.9)}}
		scorer.Score(ctx, repeated)

		mixed := &window.Window{Events: []event.Event{
			kill(1, 0.9),
			{Type: event.StreamChatSentiment, Start: 2, End: 2, Confidence: 0.9,
				Payload: event.ChatSentimentPayload{Text: "report this hacker", Polarity: -0.8}},
			spike(3, 0.9, 1.0),
		}}
		scorer.Score(ctx, mixed)

		Convey("The multi-stream window outranks the single-stream one", func() {
			So(mixed.Score, ShouldBeGreaterThan, repeated.Score)
		})
	})

	Convey("Adding a corroborating event of a new stream never lowers the score", t, func() {
		base := &window.Window{Events: []event.Event{kill(100, 0.9)}}
		scorer.Score(ctx, base)

		grown := &window.Window{Events: []event.Event{
			kill(100, 0.9),
			{Type: event.StreamChatMessage, Start: 104, End: 104, Confidence: 0.6,
				Payload: event.ChatMessagePayload{Sender: "enemy", Text: "gg"}},
		}}
		scorer.Score(ctx, grown)

		// the chat line matches no rage term, so it adds zero weight, but
		// the density bonus still may not shrink the score
		So(grown.Score, ShouldBeGreaterThanOrEqualTo, base.Score)
	})

	Convey("Given chat sentiment, weight scales with polarity magnitude", t, func() {
		mild := &window.Window{Events: []event.Event{{
			Type: event.StreamChatSentiment, Confidence: 1.0,
			Payload: event.ChatSentimentPayload{Text: "ok", Polarity: -0.2},
		}}}
		harsh := &window.Window{Events: []event.Event{{
			Type: event.StreamChatSentiment, Confidence: 1.0,
			Payload: event.ChatSentimentPayload{Text: "REPORT", Polarity: -0.9},
		}}}
		scorer.Score(ctx, mild)
		scorer.Score(ctx, harsh)

		So(harsh.Score, ShouldBeGreaterThan, mild.Score)

		Convey("Strongly negative sentiment tags enemy rage", func() {
			So(harsh.Tags, ShouldContain, scoring.TagEnemyRage)
			So(mild.Tags, ShouldNotContain, scoring.TagEnemyRage)
		})
	})

	Convey("Given a transcript with hype lexicon hits", t, func() {
		w := &window.Window{Events: []event.Event{{
			Type: event.StreamTranscript, Confidence: 1.0,
			Payload: event.TranscriptPayload{Text: "that was insane, absolutely insane clutch"},
		}}}
		scorer.Score(ctx, w)

		Convey("Weight scales with the hit count and tags team hype", func() {
			want := 20.0 * 3 * (1 + math.Log(2)) // insane x2 + clutch
			So(w.Score, ShouldAlmostEqual, want, 1e-9)
			So(w.Tags, ShouldContain, scoring.TagTeamHype)
		})
	})

	Convey("Given two kills in one window", t, func() {
		w := &window.Window{Events: []event.Event{kill(50, 0.9), kill(53, 0.9)}}
		scorer.Score(ctx, w)

		Convey("The multi-kill tag is derived", func() {
			So(w.Tags, ShouldContain, scoring.TagMultiKill)
		})
	})

	Convey("Given a headshot smoke kill", t, func() {
		w := &window.Window{Events: []event.Event{{
			Type: event.StreamKill, Confidence: 0.9,
			Payload: event.KillPayload{Killer: "ace", Victim: "mark", Headshot: true, Smoke: true},
		}}}
		scorer.Score(ctx, w)

		So(w.Tags, ShouldContain, scoring.TagHeadshot)
		So(w.Tags, ShouldContain, scoring.TagSmokeKill)
	})

	Convey("Given a window with zero events", t, func() {
		w := &window.Window{}
		scorer.Score(ctx, w)

		Convey("It scores zero and carries no tags", func() {
			So(w.Score, ShouldEqual, 0.0)
			So(w.Tags, ShouldBeEmpty)
		})
	})

	Convey("Scores are never negative", t, func() {
		w := &window.Window{Events: []event.Event{{
			Type: event.StreamChatSentiment, Confidence: 1.0,
			Payload: event.ChatSentimentPayload{Text: "x", Polarity: -1.0},
		}}}
		scorer.Score(ctx, w)
		So(w.Score, ShouldBeGreaterThanOrEqualTo, 0)
	})
}
