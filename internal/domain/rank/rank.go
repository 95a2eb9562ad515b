// Package rank orders scored windows, merges overlapping ones, and applies
// the per-video cap and score floor.
package rank

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/strayfire/chaos/internal/domain/event"
	"github.com/strayfire/chaos/internal/domain/window"
	"github.com/strayfire/chaos/pkg/logger"
	"github.com/strayfire/chaos/pkg/metrics"
)

// Default ranking configuration constants.
const (
	defaultMaxPerVideo = 10
	defaultMinScore    = 0.0
)

// Scorer recomputes a window's composite score. Merged windows are rescored
// over their deduplicated union event set instead of summing, so shared
// events are never double-counted.
type Scorer interface {
	Score(ctx context.Context, w *window.Window)
}

// Ranker produces the final ordered highlight list for one video.
type Ranker struct {
	scorer          Scorer
	overlapFraction float64
	maxPerVideo     int
	minScore        float64
	log             logger.Logger
}

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithOverlapFraction sets the overlap ratio above which two windows merge.
// Zero merges on any overlap.
func WithOverlapFraction(fraction float64) Option {
	return func(r *Ranker) {
		if fraction >= 0 && fraction <= 1 {
			r.overlapFraction = fraction
		}
	}
}

// WithMaxPerVideo caps the number of highlights kept per video.
func WithMaxPerVideo(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.maxPerVideo = n
		}
	}
}

// WithMinScore drops windows scoring below the floor.
func WithMinScore(score float64) Option {
	return func(r *Ranker) {
		if score >= 0 {
			r.minScore = score
		}
	}
}

// WithLogger sets a custom logger for the ranker.
func WithLogger(log logger.Logger) Option {
	return func(r *Ranker) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRanker creates a ranker with configuration options.
func NewRanker(scorer Scorer, opts ...Option) *Ranker {
	r := &Ranker{
		scorer:      scorer,
		maxPerVideo: defaultMaxPerVideo,
		minScore:    defaultMinScore,
		log:         logger.Named("ranking"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// eventKey identifies an event for union deduplication.
func eventKey(e event.Event) string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("%s|%.6f|%.6f", e.Type, e.Start, e.End)
}

// shouldMerge reports whether two windows overlap beyond the configured
// fraction. With a zero fraction, any overlap merges.
func (r *Ranker) shouldMerge(a, b window.Window) bool {
	if !a.Overlaps(b) {
		return false
	}
	if r.overlapFraction == 0 {
		return true
	}
	return a.OverlapFraction(b) > r.overlapFraction
}

// merge unions two windows and rescores the deduplicated event set.
func (r *Ranker) merge(ctx context.Context, a, b window.Window) window.Window {
	out := window.Window{
		VideoID: a.VideoID,
		Start:   math.Min(a.Start, b.Start),
		End:     math.Max(a.End, b.End),
	}

	seen := make(map[string]bool, len(a.Events)+len(b.Events))
	for _, e := range append(append([]event.Event{}, a.Events...), b.Events...) {
		k := eventKey(e)
		if seen[k] {
			continue
		}
		seen[k] = true
		out.Events = append(out.Events, e)
	}
	sort.SliceStable(out.Events, func(i, j int) bool {
		if out.Events[i].Start != out.Events[j].Start {
			return out.Events[i].Start < out.Events[j].Start
		}
		return out.Events[i].Type.Priority() < out.Events[j].Type.Priority()
	})

	r.scorer.Score(ctx, &out)
	return out
}

// mergePass performs one left-to-right merge sweep over start-ordered
// windows. Returns the result and the number of merges performed.
func (r *Ranker) mergePass(ctx context.Context, wins []window.Window) ([]window.Window, int) {
	if len(wins) < 2 {
		return wins, 0
	}
	sort.SliceStable(wins, func(i, j int) bool {
		if wins[i].Start != wins[j].Start {
			return wins[i].Start < wins[j].Start
		}
		return wins[i].End < wins[j].End
	})

	merges := 0
	out := []window.Window{wins[0]}
	for _, w := range wins[1:] {
		last := &out[len(out)-1]
		if r.shouldMerge(*last, w) {
			*last = r.merge(ctx, *last, w)
			merges++
			continue
		}
		out = append(out, w)
	}
	return out, merges
}

// Rank produces the final ordered highlight list: merge overlapping windows
// to a fixed point, drop zero-event and sub-floor windows, sort by score
// descending, and truncate to the per-video cap. The operation is
// deterministic and idempotent.
func (r *Ranker) Rank(ctx context.Context, wins []window.Window) []window.Window {
	kept := make([]window.Window, 0, len(wins))
	for _, w := range wins {
		if len(w.Events) == 0 {
			// should not occur given windowing's construction; scored
			// zero and dropped rather than treated as an error
			continue
		}
		kept = append(kept, w)
	}

	totalMerges := 0
	for {
		var merges int
		kept, merges = r.mergePass(ctx, kept)
		totalMerges += merges
		if merges == 0 {
			break
		}
	}
	if totalMerges > 0 {
		metrics.RecordWindowsMerged(totalMerges)
	}

	filtered := kept[:0]
	for _, w := range kept {
		if w.Score >= r.minScore {
			filtered = append(filtered, w)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		if filtered[i].Start != filtered[j].Start {
			return filtered[i].Start < filtered[j].Start
		}
		return len(filtered[i].Events) > len(filtered[j].Events)
	})

	if len(filtered) > r.maxPerVideo {
		filtered = filtered[:r.maxPerVideo]
	}

	r.log.Debug(ctx, "ranking complete",
		logger.Int("candidates", len(wins)),
		logger.Int("merges", totalMerges),
		logger.Int("final", len(filtered)),
	)

	out := make([]window.Window, len(filtered))
	copy(out, filtered)
	return out
}
