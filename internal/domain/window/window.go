// Package window groups temporally proximate events into candidate
// highlight windows.
package window

import (
	"context"
	"math"

	"github.com/strayfire/chaos/internal/domain/event"
	"github.com/strayfire/chaos/pkg/logger"
	"github.com/strayfire/chaos/pkg/metrics"
)

// Default windowing configuration constants.
const (
	defaultMergeGap   = 10.0
	defaultPrePad     = 5.0
	defaultPostPad    = 8.0
	defaultHighEnergy = 0.8
)

// Window is a candidate highlight: a time range with the events that fall
// inside it. Events are shared references into the event store; one event may
// seed several candidates before merging.
type Window struct {
	VideoID string
	Start   float64
	End     float64
	Score   float64
	Events  []event.Event
	Tags    []string
}

// Overlaps reports whether w and other share any time range.
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && other.Start < w.End
}

// OverlapFraction returns the overlapping share of the shorter window.
// Zero when the windows are disjoint.
func (w Window) OverlapFraction(other Window) float64 {
	overlap := math.Min(w.End, other.End) - math.Max(w.Start, other.Start)
	if overlap <= 0 {
		return 0
	}
	shorter := math.Min(w.End-w.Start, other.End-other.Start)
	if shorter <= 0 {
		return 1
	}
	return overlap / shorter
}

// Engine produces candidate windows from an event store. It is a pure
// function of (store, configuration); overlap resolution belongs to ranking.
type Engine struct {
	mergeGap   float64
	prePad     float64
	postPad    float64
	highEnergy float64
	anchors    map[event.StreamType]bool
	log        logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMergeGap sets the max silence in seconds between events still
// considered part of one cluster.
func WithMergeGap(seconds float64) Option {
	return func(g *Engine) {
		if seconds >= 0 {
			g.mergeGap = seconds
		}
	}
}

// WithPadding sets the pre/post padding applied around events.
func WithPadding(pre, post float64) Option {
	return func(g *Engine) {
		if pre >= 0 {
			g.prePad = pre
		}
		if post >= 0 {
			g.postPad = post
		}
	}
}

// WithHighEnergyThreshold sets the minimum normalized energy for an audio
// spike to act as an anchor.
func WithHighEnergyThreshold(threshold float64) Option {
	return func(g *Engine) {
		if threshold >= 0 && threshold <= 1 {
			g.highEnergy = threshold
		}
	}
}

// WithAnchorTypes replaces the default anchor stream set.
func WithAnchorTypes(types ...event.StreamType) Option {
	return func(g *Engine) {
		g.anchors = make(map[event.StreamType]bool, len(types))
		for _, t := range types {
			g.anchors[t] = true
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(log logger.Logger) Option {
	return func(g *Engine) {
		if log != nil {
			g.log = log
		}
	}
}

// NewEngine creates a windowing engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	g := &Engine{
		mergeGap:   defaultMergeGap,
		prePad:     defaultPrePad,
		postPad:    defaultPostPad,
		highEnergy: defaultHighEnergy,
		anchors: map[event.StreamType]bool{
			event.StreamKill:       true,
			event.StreamKillstreak: true,
			event.StreamAudioSpike: true,
		},
		log: logger.Named("windowing"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// isAnchor reports whether e may seed a new window. Audio spikes only anchor
// at or above the high-energy threshold.
func (g *Engine) isAnchor(e event.Event) bool {
	if !g.anchors[e.Type] {
		return false
	}
	if sp, ok := e.Payload.(event.AudioSpikePayload); ok {
		return sp.Energy >= g.highEnergy
	}
	return true
}

// Windows sweeps the store once and returns candidate windows in start
// order. A store with no anchor events yields no windows; highlights are
// never manufactured from corroborating signals alone.
func (g *Engine) Windows(ctx context.Context, store *event.Store) []Window {
	var out []Window
	var open *Window

	closeOpen := func() {
		if open == nil {
			return
		}
		if d := store.Duration(); d > 0 && open.End > d {
			open.End = d
		}
		out = append(out, *open)
		open = nil
	}

	for _, e := range store.Events() {
		if open != nil && e.Start <= open.End+g.mergeGap {
			// Inside the growing cluster: every event extends the
			// boundary, anchor or not.
			if end := e.End + g.postPad; end > open.End {
				open.End = end
			}
			open.Events = append(open.Events, e)
			continue
		}

		if !g.isAnchor(e) {
			continue
		}

		closeOpen()
		open = &Window{
			VideoID: store.VideoID(),
			Start:   math.Max(0, e.Start-g.prePad),
			End:     e.End + g.postPad,
			Events:  []event.Event{e},
		}
		metrics.RecordWindowSeeded()
	}
	closeOpen()

	g.log.Debug(ctx, "windowing pass complete",
		logger.String("video", store.VideoID()),
		logger.Int("events", store.Len()),
		logger.Int("windows", len(out)),
	)
	return out
}
