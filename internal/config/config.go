// Package config defines pipeline configuration structures and loading.
//
// Conventions:
// - New() builds a Config carrying documented defaults.
// - Load(ctx) layers defaults, an optional YAML file, and CHAOS_* env vars.
// - External errors are wrapped via this package's sentinel errors.
package config

import "context"

// Stream weight defaults, taken from the tuned single-title profile.
const (
	defaultKillWeight       = 10.0
	defaultKillstreakWeight = 25.0
	defaultChatWeight       = 25.0
	defaultVoiceWeight      = 20.0
	defaultSpikeWeight      = 5.0
)

// Weights holds the per-stream base scoring weights.
type Weights struct {
	Kill       float64 `koanf:"kill"`
	Killstreak float64 `koanf:"killstreak"`
	Chat       float64 `koanf:"chat"`
	Voice      float64 `koanf:"voice"`
	Spike      float64 `koanf:"spike"`
}

// Thresholds holds per-stream minimum detector confidences. Events below
// their stream's threshold never enter the event store.
type Thresholds struct {
	Kill       float64 `koanf:"kill"`
	Killstreak float64 `koanf:"killstreak"`
	ChatMsg    float64 `koanf:"chat_message"`
	ChatSent   float64 `koanf:"chat_sentiment"`
	Transcript float64 `koanf:"transcript_segment"`
	AudioSpike float64 `koanf:"audio_spike"`
}

// Detectors holds the base URLs of the four external detector services.
type Detectors struct {
	KillfeedURL string `koanf:"killfeed_url"`
	ChatURL     string `koanf:"chat_url"`
	SpeechURL   string `koanf:"speech_url"`
	AudioURL    string `koanf:"audio_url"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr enables a Prometheus /metrics listener when non-empty.
	MetricsAddr string `koanf:"metrics_addr"`

	// CapturesDir is scanned recursively for .mp4 recordings at ingest.
	CapturesDir string `koanf:"captures_dir"`

	// DataDir holds the pipeline manifest, detector artifacts, and outputs.
	DataDir string `koanf:"data_dir"`

	// WorkerCount bounds concurrent per-video stage processing.
	WorkerCount int `koanf:"worker_count"`

	// MergeGapSeconds is the max silence between events still considered
	// part of the same growing window.
	MergeGapSeconds float64 `koanf:"merge_gap_seconds"`

	// PrePadSeconds and PostPadSeconds pad window boundaries around events.
	PrePadSeconds  float64 `koanf:"pre_pad_seconds"`
	PostPadSeconds float64 `koanf:"post_pad_seconds"`

	// HighEnergyThreshold is the minimum normalized energy for an audio
	// spike to seed a window on its own.
	HighEnergyThreshold float64 `koanf:"high_energy_threshold"`

	// TriageEnergyThreshold shortlists a video for deep analysis when any
	// audio spike reaches it.
	TriageEnergyThreshold float64 `koanf:"triage_energy_threshold"`

	// KillMemorySeconds suppresses repeated kill-feed reads of the same
	// kill line within this many seconds.
	KillMemorySeconds float64 `koanf:"kill_memory_seconds"`

	// OverlapFraction is the overlap ratio above which two scored windows
	// merge. Zero merges on any overlap.
	OverlapFraction float64 `koanf:"overlap_fraction"`

	// MaxHighlightsPerVideo caps the exported list per video.
	MaxHighlightsPerVideo int `koanf:"max_highlights_per_video"`

	// MinScore drops windows scoring below it.
	MinScore float64 `koanf:"min_score"`

	StreamWeights        Weights    `koanf:"stream_weights"`
	ConfidenceThresholds Thresholds `koanf:"confidence_thresholds"`
	Detectors            Detectors  `koanf:"detectors"`

	// HypeLexicon and RageLexicon drive transcript and chat tagging.
	HypeLexicon []string `koanf:"hype_lexicon"`
	RageLexicon []string `koanf:"rage_lexicon"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		MetricsAddr:           "",
		CapturesDir:           "./captures",
		DataDir:               "./data",
		WorkerCount:           4,
		MergeGapSeconds:       10.0,
		PrePadSeconds:         5.0,
		PostPadSeconds:        8.0,
		HighEnergyThreshold:   0.8,
		TriageEnergyThreshold: 0.8,
		KillMemorySeconds:     7.0,
		OverlapFraction:       0.0,
		MaxHighlightsPerVideo: 10,
		MinScore:              0.0,
		StreamWeights: Weights{
			Kill:       defaultKillWeight,
			Killstreak: defaultKillstreakWeight,
			Chat:       defaultChatWeight,
			Voice:      defaultVoiceWeight,
			Spike:      defaultSpikeWeight,
		},
		ConfidenceThresholds: Thresholds{
			Kill:       0.5,
			Killstreak: 0.5,
			ChatMsg:    0.4,
			ChatSent:   0.4,
			Transcript: 0.4,
			AudioSpike: 0.3,
		},
		Detectors: Detectors{
			KillfeedURL: "http://localhost:7401",
			ChatURL:     "http://localhost:7402",
			SpeechURL:   "http://localhost:7403",
			AudioURL:    "http://localhost:7404",
		},
		HypeLexicon: []string{"hype", "insane", "clutch", "lets go", "no way"},
		RageLexicon: []string{"rage", "hacker", "cheater", "report", "wtf"},
	}
}
