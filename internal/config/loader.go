package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if CHAOS_CONFIG is set
//  3. env (prefix CHAOS_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("CHAOS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: CHAOS_DATA_DIR, CHAOS_MERGE_GAP_SECONDS, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("CHAOS_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "chaos_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would silently produce empty or
// nonsensical results for every video. Fatal at startup by contract.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.CapturesDir == "" || c.DataDir == "" {
		return fail("captures_dir and data_dir must not be empty")
	}
	if c.WorkerCount < 1 {
		return fail("worker_count must be >= 1, got %d", c.WorkerCount)
	}
	if c.MergeGapSeconds < 0 {
		return fail("merge_gap_seconds must not be negative, got %v", c.MergeGapSeconds)
	}
	if c.PrePadSeconds < 0 || c.PostPadSeconds < 0 {
		return fail("padding must not be negative, got pre=%v post=%v", c.PrePadSeconds, c.PostPadSeconds)
	}
	if c.OverlapFraction < 0 || c.OverlapFraction > 1 {
		return fail("overlap_fraction must be in [0,1], got %v", c.OverlapFraction)
	}
	if c.MaxHighlightsPerVideo < 1 {
		return fail("max_highlights_per_video must be >= 1, got %d", c.MaxHighlightsPerVideo)
	}
	if c.MinScore < 0 {
		return fail("min_score must not be negative, got %v", c.MinScore)
	}
	if c.KillMemorySeconds < 0 {
		return fail("kill_memory_seconds must not be negative, got %v", c.KillMemorySeconds)
	}

	for name, w := range map[string]float64{
		"kill":       c.StreamWeights.Kill,
		"killstreak": c.StreamWeights.Killstreak,
		"chat":       c.StreamWeights.Chat,
		"voice":      c.StreamWeights.Voice,
		"spike":      c.StreamWeights.Spike,
	} {
		if w < 0 {
			return fail("stream_weights.%s must not be negative, got %v", name, w)
		}
	}

	for name, th := range map[string]float64{
		"kill":               c.ConfidenceThresholds.Kill,
		"killstreak":         c.ConfidenceThresholds.Killstreak,
		"chat_message":       c.ConfidenceThresholds.ChatMsg,
		"chat_sentiment":     c.ConfidenceThresholds.ChatSent,
		"transcript_segment": c.ConfidenceThresholds.Transcript,
		"audio_spike":        c.ConfidenceThresholds.AudioSpike,
	} {
		if th < 0 || th > 1 {
			return fail("confidence_thresholds.%s must be in [0,1], got %v", name, th)
		}
	}

	for name, th := range map[string]float64{
		"high_energy_threshold":   c.HighEnergyThreshold,
		"triage_energy_threshold": c.TriageEnergyThreshold,
	} {
		if th < 0 || th > 1 {
			return fail("%s must be in [0,1], got %v", name, th)
		}
	}

	return nil
}
