// Package scoring computes composite scores and derived tags for candidate
// highlight windows.
package scoring

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/strayfire/chaos/internal/domain/event"
	"github.com/strayfire/chaos/internal/domain/window"
	"github.com/strayfire/chaos/pkg/logger"
)

// Default scoring configuration constants.
const (
	defaultKillWeight       = 10.0
	defaultKillstreakWeight = 25.0
	defaultChatWeight       = 25.0
	defaultVoiceWeight      = 20.0
	defaultSpikeWeight      = 5.0

	// ragePolarity marks chat sentiment as enemy rage at or below it.
	ragePolarity = -0.5
)

// Derived tag labels.
const (
	TagMultiKill    = "multi-kill"
	TagEnemyRage    = "enemy-rage"
	TagTeamHype     = "team-hype"
	TagLoudReaction = "loud-reaction"
	TagHeadshot     = "headshot"
	TagSmokeKill    = "smoke-kill"
)

// Weights holds per-stream base weights.
type Weights struct {
	Kill       float64
	Killstreak float64
	Chat       float64
	Voice      float64
	Spike      float64
}

// Scorer computes composite scores for windows. It is a pure function of
// (window events, configuration).
type Scorer struct {
	weights Weights
	hype    []string
	rage    []string
	log     logger.Logger
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithWeights sets the per-stream base weights. Negative weights are
// ignored in favor of the defaults.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		if w.Kill >= 0 {
			s.weights.Kill = w.Kill
		}
		if w.Killstreak >= 0 {
			s.weights.Killstreak = w.Killstreak
		}
		if w.Chat >= 0 {
			s.weights.Chat = w.Chat
		}
		if w.Voice >= 0 {
			s.weights.Voice = w.Voice
		}
		if w.Spike >= 0 {
			s.weights.Spike = w.Spike
		}
	}
}

// WithLexicons sets the hype and rage word lists used for transcript and
// chat weighting.
func WithLexicons(hype, rage []string) Option {
	return func(s *Scorer) {
		if hype != nil {
			s.hype = hype
		}
		if rage != nil {
			s.rage = rage
		}
	}
}

// WithLogger sets a custom logger for the scorer.
func WithLogger(log logger.Logger) Option {
	return func(s *Scorer) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScorer creates a scorer with configuration options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		weights: Weights{
			Kill:       defaultKillWeight,
			Killstreak: defaultKillstreakWeight,
			Chat:       defaultChatWeight,
			Voice:      defaultVoiceWeight,
			Spike:      defaultSpikeWeight,
		},
		hype: []string{"hype", "insane", "clutch", "lets go", "no way"},
		rage: []string{"rage", "hacker", "cheater", "report", "wtf"},
		log:  logger.Named("scoring"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// countHits returns the total number of lexicon term occurrences in text.
func countHits(text string, lexicon []string) int {
	lower := strings.ToLower(text)
	hits := 0
	for _, term := range lexicon {
		hits += strings.Count(lower, strings.ToLower(term))
	}
	return hits
}

// effectiveWeight returns the base weight of one event, scaled by its
// stream-specific magnitude.
func (s *Scorer) effectiveWeight(e event.Event) float64 {
	switch p := e.Payload.(type) {
	case event.KillPayload:
		return s.weights.Kill
	case event.KillstreakPayload:
		return s.weights.Killstreak
	case event.ChatSentimentPayload:
		return s.weights.Chat * math.Abs(p.Polarity)
	case event.ChatMessagePayload:
		if countHits(p.Text, s.rage) > 0 {
			return s.weights.Chat
		}
		return 0
	case event.TranscriptPayload:
		return s.weights.Voice * float64(countHits(p.Text, s.hype))
	case event.AudioSpikePayload:
		return s.weights.Spike * p.Energy
	default:
		return 0
	}
}

// Score computes the composite score and derived tags for w in place. The
// composite is the confidence-weighted sum over contributing events times a
// density bonus of 1 + ln(1 + distinct stream types present), rewarding
// windows where independent detectors agree. A window with no events scores
// zero; ranking drops it.
func (s *Scorer) Score(ctx context.Context, w *window.Window) {
	if len(w.Events) == 0 {
		w.Score = 0
		w.Tags = nil
		return
	}

	sum := 0.0
	streams := make(map[event.StreamType]bool)
	tags := make(map[string]bool)
	kills := 0

	for _, e := range w.Events {
		sum += s.effectiveWeight(e) * e.Confidence
		streams[e.Type] = true

		switch p := e.Payload.(type) {
		case event.KillPayload:
			kills++
			if p.Headshot {
				tags[TagHeadshot] = true
			}
			if p.Smoke {
				tags[TagSmokeKill] = true
			}
		case event.ChatSentimentPayload:
			if p.Polarity <= ragePolarity || countHits(p.Text, s.rage) > 0 {
				tags[TagEnemyRage] = true
			}
		case event.ChatMessagePayload:
			if countHits(p.Text, s.rage) > 0 {
				tags[TagEnemyRage] = true
			}
		case event.TranscriptPayload:
			if countHits(p.Text, s.hype) > 0 {
				tags[TagTeamHype] = true
			}
		case event.AudioSpikePayload:
			tags[TagLoudReaction] = true
		}
	}
	if kills > 1 {
		tags[TagMultiKill] = true
	}

	bonus := 1 + math.Log(1+float64(len(streams)))
	w.Score = sum * bonus

	w.Tags = make([]string, 0, len(tags))
	for tag := range tags {
		w.Tags = append(w.Tags, tag)
	}
	sort.Strings(w.Tags)

	s.log.Debug(ctx, "scored window",
		logger.String("video", w.VideoID),
		logger.Float64("start", w.Start),
		logger.Float64("score", w.Score),
		logger.Int("streams", len(streams)),
	)
}
