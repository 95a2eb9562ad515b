package event

import (
	"context"
	"fmt"
	"sort"

	"github.com/strayfire/chaos/internal/domain/dedupe"
	"github.com/strayfire/chaos/pkg/logger"
	"github.com/strayfire/chaos/pkg/metrics"
)

// Store is the per-video ordered collection of events from all detectors.
// It is built once per video per run and immutable after construction.
// Events are ordered by Start, ties broken by stream priority.
type Store struct {
	videoID  string
	duration float64
	events   []Event

	thresholds map[StreamType]float64
	killMemory *dedupe.KillMemory
	log        logger.Logger
}

// Option applies a configuration option to the Store builder.
type Option func(*Store)

// WithThresholds sets per-stream minimum confidences. Events below their
// stream's threshold are discarded, never kept at zero weight.
func WithThresholds(thresholds map[StreamType]float64) Option {
	return func(s *Store) {
		s.thresholds = thresholds
	}
}

// WithKillMemory sets the suppression window for repeated kill detections.
func WithKillMemory(seconds float64) Option {
	return func(s *Store) {
		s.killMemory = dedupe.NewKillMemory(dedupe.WithWindow(seconds))
	}
}

// WithLogger sets a custom logger for store construction.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// NewStore builds a Store from normalized detector events. Malformed events
// are dropped and logged; they are never fatal for the video. Construction
// is the only mutation the store ever sees.
func NewStore(ctx context.Context, videoID string, duration float64, events []Event, opts ...Option) *Store {
	s := &Store{
		videoID:    videoID,
		duration:   duration,
		killMemory: dedupe.NewKillMemory(),
		log:        logger.Named("event-store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	kept := make([]Event, 0, len(events))
	for _, e := range events {
		if err := e.Validate(); err != nil {
			metrics.RecordEventDropped("malformed")
			s.log.Warn(ctx, "dropping malformed event",
				logger.String("video", videoID),
				logger.Error(err),
			)
			continue
		}
		if th, ok := s.thresholds[e.Type]; ok && e.Confidence < th {
			metrics.RecordEventDropped("below_threshold")
			s.log.Debug(ctx, "dropping low-confidence event",
				logger.String("video", videoID),
				logger.String("stream", string(e.Type)),
				logger.Float64("confidence", e.Confidence),
				logger.Float64("threshold", th),
			)
			continue
		}
		kept = append(kept, e)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Start != kept[j].Start {
			return kept[i].Start < kept[j].Start
		}
		return kept[i].Type.Priority() < kept[j].Type.Priority()
	})

	// Suppress repeated reads of the same kill line. Runs after sorting so
	// the memory window sees detections in timestamp order.
	s.events = make([]Event, 0, len(kept))
	for _, e := range kept {
		if kp, ok := e.Payload.(KillPayload); ok {
			key := fmt.Sprintf("%s|%s", kp.Killer, kp.Victim)
			if s.killMemory.SeenAndRecord(key, e.Start) {
				metrics.RecordEventDropped("duplicate")
				s.log.Debug(ctx, "suppressing repeated kill detection",
					logger.String("video", videoID),
					logger.String("key", key),
					logger.Float64("at", e.Start),
				)
				continue
			}
		}
		metrics.RecordEventLoaded(string(e.Type))
		s.events = append(s.events, e)
	}

	return s
}

// VideoID returns the owning video's identifier.
func (s *Store) VideoID() string { return s.videoID }

// Duration returns the video duration in seconds.
func (s *Store) Duration() float64 { return s.duration }

// Len returns the number of stored events.
func (s *Store) Len() int { return len(s.events) }

// Events returns the ordered events. Callers must not mutate the slice.
func (s *Store) Events() []Event { return s.events }
