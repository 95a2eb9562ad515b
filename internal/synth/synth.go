// Package synth generates synthetic detector artifacts: scripted fight
// scenarios with randomized timing jitter, written straight into the data
// directory so correlation can run without any detector service.
package synth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/strayfire/chaos/internal/adapters/artifact"
	"github.com/strayfire/chaos/internal/adapters/manifest"
	"github.com/strayfire/chaos/pkg/logger"
)

// Scenario shape constants.
const (
	randomFloatDivisor = 1000000

	videoDuration    = 600.0
	fightSpacing     = 120.0
	firstFightOffset = 60.0
	fightJitter      = 20.0

	killConfidenceMin    = 0.7
	killConfidenceRange  = 0.25
	chatConfidenceMin    = 0.6
	chatConfidenceRange  = 0.3
	voiceConfidenceMin   = 0.7
	voiceConfidenceRange = 0.25
	spikeConfidenceMin   = 0.8
	spikeConfidenceRange = 0.15

	spikeEnergyMin   = 0.75
	spikeEnergyRange = 0.24

	multiKillChance = 0.5
	rageChance      = 0.6
	hypeChance      = 0.7
	headshotChance  = 0.3
)

var players = []string{"viper", "nomad", "echo", "slate", "ember", "wraith"}

var hypeLines = []string{
	"that was insane lets go",
	"clutch play no way he hit that",
	"lets go that was a clutch",
}

var rageLines = []string{
	"report that hacker",
	"wtf total cheater",
	"this guy is raging hard",
}

// randomFloat returns a uniform float in [0, 1) from crypto/rand.
func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func pick(options []string) string {
	return options[int(randomFloat()*float64(len(options)))%len(options)]
}

func between(min, span float64) float64 {
	return min + randomFloat()*span
}

// Generator writes synthetic artifacts and manifest entries.
type Generator struct {
	dataDir string
	fights  int
	log     logger.Logger
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithFights sets how many fight scenes each video contains.
func WithFights(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.fights = n
		}
	}
}

// WithLogger replaces the generator's logger.
func WithLogger(log logger.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

// New creates a Generator targeting the given data directory.
func New(dataDir string, opts ...Option) *Generator {
	g := &Generator{
		dataDir: dataDir,
		fights:  3,
		log:     logger.Named("synth"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// fight holds one scripted scene's records split by detector.
type fight struct {
	killfeed []artifact.Record
	chat     []artifact.Record
	speech   []artifact.Record
	audio    []artifact.Record
}

// makeFight scripts one scene around anchor time t: one or two kills, an
// audio spike on the first kill, and probabilistic chat and voice
// reactions a few seconds later.
func makeFight(t float64) fight {
	var f fight

	shooter := pick(players)
	victim := pick(players)
	for victim == shooter {
		victim = pick(players)
	}

	f.killfeed = append(f.killfeed, artifact.KillRecord(
		t, between(killConfidenceMin, killConfidenceRange),
		shooter, victim, "rifle", randomFloat() < headshotChance, false))

	if randomFloat() < multiKillChance {
		second := pick(players)
		for second == shooter || second == victim {
			second = pick(players)
		}
		f.killfeed = append(f.killfeed, artifact.KillRecord(
			t+3, between(killConfidenceMin, killConfidenceRange),
			shooter, second, "rifle", false, false))
	}

	f.audio = append(f.audio, artifact.AudioSpikeRecord(
		t+1, between(spikeConfidenceMin, spikeConfidenceRange),
		between(spikeEnergyMin, spikeEnergyRange)))

	if randomFloat() < rageChance {
		f.chat = append(f.chat, artifact.ChatMessageRecord(
			t+4, between(chatConfidenceMin, chatConfidenceRange),
			victim, pick(rageLines)))
	}
	if randomFloat() < hypeChance {
		f.speech = append(f.speech, artifact.TranscriptRecord(
			t+2, t+5, between(voiceConfidenceMin, voiceConfidenceRange),
			pick(hypeLines)))
	}
	return f
}

// Video generates one video's artifacts and registers it in the manifest
// as already triaged, analyzed and shortlisted, leaving correlation and
// summary to the pipeline.
func (g *Generator) Video(ctx context.Context, store *manifest.Store, videoID string) error {
	var all fight
	for i := 0; i < g.fights; i++ {
		t := firstFightOffset + float64(i)*fightSpacing + randomFloat()*fightJitter
		f := makeFight(t)
		all.killfeed = append(all.killfeed, f.killfeed...)
		all.chat = append(all.chat, f.chat...)
		all.speech = append(all.speech, f.speech...)
		all.audio = append(all.audio, f.audio...)
	}

	writes := map[string][]artifact.Record{
		artifact.DetectorKillfeed: all.killfeed,
		artifact.DetectorChat:     all.chat,
		artifact.DetectorSpeech:   all.speech,
		artifact.DetectorAudio:    all.audio,
	}
	for detector, records := range writes {
		if err := artifact.Write(g.dataDir, videoID, detector, records); err != nil {
			return fmt.Errorf("write %s artifact: %w", detector, err)
		}
	}

	if err := store.Ensure(ctx, videoID, "synthetic://"+videoID); err != nil {
		return err
	}
	err := store.Apply(ctx, videoID, func(e *manifest.Entry) {
		e.DurationSeconds = videoDuration
		e.Shortlisted = true
		_ = e.SetCompleted(manifest.StageTriaged, true)
		_ = e.SetCompleted(manifest.StageAnalyzed, true)
	})
	if err != nil {
		return err
	}

	g.log.Info(ctx, "synthetic video generated",
		logger.String("video", videoID),
		logger.Int("fights", g.fights),
		logger.Int("kills", len(all.killfeed)))
	return nil
}

// Generate produces n synthetic videos named synth-001, synth-002, ...
func (g *Generator) Generate(ctx context.Context, store *manifest.Store, n int) error {
	for i := 1; i <= n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := g.Video(ctx, store, fmt.Sprintf("synth-%03d", i)); err != nil {
			return err
		}
	}
	return nil
}
