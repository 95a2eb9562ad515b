// Package pipeline drives recordings through the staged gauntlet: ingest,
// triage, analyze, correlate, summarize. Each stage gates on its
// predecessor per video, failures are recorded on the video and never
// abort the batch, and re-running a complete stage recomputes and
// overwrites its outputs.
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/strayfire/chaos/internal/adapters/artifact"
	"github.com/strayfire/chaos/internal/adapters/detectors"
	"github.com/strayfire/chaos/internal/adapters/export"
	"github.com/strayfire/chaos/internal/adapters/manifest"
	"github.com/strayfire/chaos/internal/config"
	"github.com/strayfire/chaos/internal/domain/event"
	"github.com/strayfire/chaos/internal/domain/rank"
	"github.com/strayfire/chaos/internal/domain/scoring"
	"github.com/strayfire/chaos/internal/domain/window"
	"github.com/strayfire/chaos/pkg/logger"
	"github.com/strayfire/chaos/pkg/metrics"
)

// Analyzer is the detector surface the driver needs. *detectors.Client
// satisfies it; tests swap in fakes.
type Analyzer interface {
	Killfeed(ctx context.Context, videoPath string) (*detectors.AnalyzeResponse, error)
	Chat(ctx context.Context, videoPath string) (*detectors.AnalyzeResponse, error)
	Speech(ctx context.Context, videoPath string) (*detectors.AnalyzeResponse, error)
	Audio(ctx context.Context, videoPath string) (*detectors.AnalyzeResponse, error)
}

// Driver runs pipeline stages over the manifest's videos.
type Driver struct {
	cfg      *config.Config
	store    *manifest.Store
	analyzer Analyzer
	log      logger.Logger
}

// Option applies a configuration option to the Driver.
type Option func(*Driver)

// WithLogger replaces the driver's logger.
func WithLogger(log logger.Logger) Option {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

// New creates a stage driver over the given manifest and detector client.
func New(cfg *config.Config, store *manifest.Store, analyzer Analyzer, opts ...Option) *Driver {
	d := &Driver{
		cfg:      cfg,
		store:    store,
		analyzer: analyzer,
		log:      logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunAll executes every stage in order.
func (d *Driver) RunAll(ctx context.Context) error {
	for _, stage := range manifest.Stages() {
		if err := d.RunStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

// RunStage executes one named stage across all videos. Per-video failures
// are recorded on the manifest; only batch-level faults (walk errors,
// manifest I/O, cancellation) surface as the returned error.
func (d *Driver) RunStage(ctx context.Context, stage manifest.Stage) error {
	started := time.Now()
	defer func() {
		metrics.RecordStageDuration(string(stage), time.Since(started).Seconds())
	}()

	d.log.Info(ctx, "stage starting", logger.String("stage", string(stage)))

	var err error
	switch stage {
	case manifest.StageIngested:
		err = d.ingest(ctx)
	case manifest.StageTriaged:
		err = d.forEachVideo(ctx, stage, d.triage)
	case manifest.StageAnalyzed:
		err = d.forEachVideo(ctx, stage, d.analyze)
	case manifest.StageCorrelated:
		err = d.forEachVideo(ctx, stage, d.correlate)
	case manifest.StageSummarized:
		err = d.summarize(ctx)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	if err != nil {
		d.log.Error(ctx, "stage aborted", logger.String("stage", string(stage)), logger.Error(err))
		return err
	}

	d.log.Info(ctx, "stage finished",
		logger.String("stage", string(stage)),
		logger.Float64("seconds", time.Since(started).Seconds()))
	return nil
}

// ingest scans the captures directory for recordings and registers each in
// the manifest. The video ID is the file name without its extension.
func (d *Driver) ingest(ctx context.Context) error {
	found := 0
	err := filepath.WalkDir(d.cfg.CapturesDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return nil
		}
		videoID := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if err := d.store.Ensure(ctx, videoID, path); err != nil {
			return err
		}
		found++
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan captures: %w", err)
	}

	metrics.UpdateVideosTotal(d.store.Len())
	d.log.Info(ctx, "recordings ingested", logger.Int("found", found), logger.Int("total", d.store.Len()))
	return nil
}

// stageFn processes one video for one stage.
type stageFn func(ctx context.Context, entry manifest.Entry) error

// forEachVideo fans manifest entries out to a bounded worker pool. Videos
// whose predecessor never completed fail with ErrStageDependencyUnmet. Any
// other per-video error is recorded on the manifest and the batch
// continues.
func (d *Driver) forEachVideo(ctx context.Context, stage manifest.Stage, fn stageFn) error {
	entries := d.store.List()
	jobs := make(chan manifest.Entry)

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.WorkerStarted()
			defer metrics.WorkerFinished()
			for entry := range jobs {
				d.runOne(ctx, stage, entry, fn)
			}
		}()
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- entry:
		}
	}
	close(jobs)
	wg.Wait()
	return ctx.Err()
}

// runOne gates, executes, and records the outcome of one video's stage.
// A video already past the stage runs again and overwrites its outputs.
func (d *Driver) runOne(ctx context.Context, stage manifest.Stage, entry manifest.Entry, fn stageFn) {
	log := d.log.Named(string(stage))

	if prev, ok := stage.Prev(); ok && !entry.Completed(prev) {
		d.fail(ctx, stage, entry.VideoID, ErrStageDependencyUnmet)
		return
	}
	if entry.Completed(stage) {
		log.Debug(ctx, "recomputing completed stage", logger.String("video", entry.VideoID))
	}

	if err := fn(ctx, entry); err != nil {
		d.fail(ctx, stage, entry.VideoID, err)
		return
	}
	if err := d.store.MarkCompleted(ctx, entry.VideoID, stage); err != nil {
		d.fail(ctx, stage, entry.VideoID, err)
		return
	}
	log.Info(ctx, "video completed", logger.String("video", entry.VideoID))
}

// fail records a per-video stage failure without stopping the batch.
func (d *Driver) fail(ctx context.Context, stage manifest.Stage, videoID string, cause error) {
	metrics.RecordStageFailure(string(stage))
	d.log.Warn(ctx, "video failed",
		logger.String("stage", string(stage)),
		logger.String("video", videoID),
		logger.Error(cause))
	if err := d.store.MarkFailed(ctx, videoID, stage, cause.Error()); err != nil {
		d.log.Error(ctx, "record failure", logger.String("video", videoID), logger.Error(err))
	}
}

// triage runs the cheap audio pass: probe duration, persist the audio
// artifact, and shortlist the video when any spike clears the triage
// threshold.
func (d *Driver) triage(ctx context.Context, entry manifest.Entry) error {
	resp, err := d.analyzer.Audio(ctx, entry.Path)
	if err != nil {
		return err
	}
	if err := artifact.Write(d.cfg.DataDir, entry.VideoID, artifact.DetectorAudio, resp.Records); err != nil {
		return err
	}

	shortlisted := false
	for _, r := range resp.Records {
		if r.Energy() >= d.cfg.TriageEnergyThreshold {
			shortlisted = true
			break
		}
	}

	return d.store.Apply(ctx, entry.VideoID, func(e *manifest.Entry) {
		e.DurationSeconds = resp.DurationSeconds
		e.Shortlisted = shortlisted
	})
}

// analyze runs the expensive detectors on shortlisted videos. The audio
// artifact from triage is kept as-is. Non-shortlisted videos complete the
// stage without detector calls so correlation can pass them through.
func (d *Driver) analyze(ctx context.Context, entry manifest.Entry) error {
	if !entry.Shortlisted {
		d.log.Debug(ctx, "not shortlisted, skipping deep analysis", logger.String("video", entry.VideoID))
		return nil
	}

	calls := []struct {
		detector string
		run      func(context.Context, string) (*detectors.AnalyzeResponse, error)
	}{
		{artifact.DetectorKillfeed, d.analyzer.Killfeed},
		{artifact.DetectorChat, d.analyzer.Chat},
		{artifact.DetectorSpeech, d.analyzer.Speech},
	}
	for _, call := range calls {
		resp, err := call.run(ctx, entry.Path)
		if err != nil {
			return err
		}
		if err := artifact.Write(d.cfg.DataDir, entry.VideoID, call.detector, resp.Records); err != nil {
			return err
		}
	}
	return nil
}

// correlate fuses the video's artifacts into ranked highlights and exports
// the highlight manifest. Non-shortlisted videos export an empty manifest
// so a rerun or summary never confuses "no highlights" with "never ran".
func (d *Driver) correlate(ctx context.Context, entry manifest.Entry) error {
	if !entry.Shortlisted {
		return export.Write(d.cfg.DataDir, entry.VideoID, nil)
	}

	records, err := artifact.ReadAll(d.cfg.DataDir, entry.VideoID)
	if err != nil {
		return err
	}

	store := event.NewStore(ctx, entry.VideoID, entry.DurationSeconds,
		artifact.Normalize(entry.VideoID, records),
		event.WithThresholds(thresholdMap(d.cfg.ConfidenceThresholds)),
		event.WithKillMemory(d.cfg.KillMemorySeconds),
	)

	engine := window.NewEngine(
		window.WithMergeGap(d.cfg.MergeGapSeconds),
		window.WithPadding(d.cfg.PrePadSeconds, d.cfg.PostPadSeconds),
		window.WithHighEnergyThreshold(d.cfg.HighEnergyThreshold),
	)

	scorer := scoring.NewScorer(
		scoring.WithWeights(scoring.Weights{
			Kill:       d.cfg.StreamWeights.Kill,
			Killstreak: d.cfg.StreamWeights.Killstreak,
			Chat:       d.cfg.StreamWeights.Chat,
			Voice:      d.cfg.StreamWeights.Voice,
			Spike:      d.cfg.StreamWeights.Spike,
		}),
		scoring.WithLexicons(d.cfg.HypeLexicon, d.cfg.RageLexicon),
	)

	ranker := rank.NewRanker(scorer,
		rank.WithOverlapFraction(d.cfg.OverlapFraction),
		rank.WithMaxPerVideo(d.cfg.MaxHighlightsPerVideo),
		rank.WithMinScore(d.cfg.MinScore),
	)

	windows := engine.Windows(ctx, store)
	for i := range windows {
		scorer.Score(ctx, &windows[i])
	}
	ranked := ranker.Rank(ctx, windows)

	return export.Write(d.cfg.DataDir, entry.VideoID, export.FromWindows(ranked))
}

// summarize folds every correlated video's highlight manifest into the run
// summary, rereading manifests even for videos summarized before so a rerun
// always overwrites. Videos gated out by an incomplete correlate stage or a
// broken highlight manifest fail here individually, like any other
// per-video stage.
func (d *Driver) summarize(ctx context.Context) error {
	perVideo := map[string][]export.Highlight{}

	for _, entry := range d.store.List() {
		if !entry.Completed(manifest.StageCorrelated) {
			d.fail(ctx, manifest.StageSummarized, entry.VideoID, ErrStageDependencyUnmet)
			continue
		}
		highlights, err := export.Read(d.cfg.DataDir, entry.VideoID)
		if err != nil {
			d.fail(ctx, manifest.StageSummarized, entry.VideoID, err)
			continue
		}
		perVideo[entry.VideoID] = highlights
		if err := d.store.MarkCompleted(ctx, entry.VideoID, manifest.StageSummarized); err != nil {
			d.fail(ctx, manifest.StageSummarized, entry.VideoID, err)
		}
	}

	if len(perVideo) == 0 {
		d.log.Info(ctx, "nothing to summarize")
		return nil
	}
	return export.WriteSummary(d.cfg.DataDir, export.BuildSummary(perVideo))
}

// thresholdMap flattens the config threshold struct into the per-stream
// map the event store consumes.
func thresholdMap(t config.Thresholds) map[event.StreamType]float64 {
	return map[event.StreamType]float64{
		event.StreamKill:          t.Kill,
		event.StreamKillstreak:    t.Killstreak,
		event.StreamChatMessage:   t.ChatMsg,
		event.StreamChatSentiment: t.ChatSent,
		event.StreamTranscript:    t.Transcript,
		event.StreamAudioSpike:    t.AudioSpike,
	}
}
