// Package manifest tracks per-video pipeline state: stage completion flags,
// failure reasons, and resume bookkeeping. Updates from concurrent video
// workers flow through a single-writer queue; the file on disk is replaced
// atomically so an interrupt never leaves a partially written manifest.
package manifest

import (
	"fmt"
	"time"
)

// Stage names the strictly ordered pipeline stages.
type Stage string

const (
	StageIngested   Stage = "ingested"
	StageTriaged    Stage = "triaged"
	StageAnalyzed   Stage = "analyzed"
	StageCorrelated Stage = "correlated"
	StageSummarized Stage = "summarized"
)

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageIngested, StageTriaged, StageAnalyzed, StageCorrelated, StageSummarized}
}

// Prev returns the predecessor stage. The first stage has none.
func (s Stage) Prev() (Stage, bool) {
	stages := Stages()
	for i, st := range stages {
		if st == s {
			if i == 0 {
				return "", false
			}
			return stages[i-1], true
		}
	}
	return "", false
}

// Entry is one manifest row: everything the driver knows about one video.
type Entry struct {
	VideoID         string    `json:"video_id"`
	Path            string    `json:"path"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	Shortlisted     bool      `json:"shortlisted"`
	LastRun         time.Time `json:"last_run"`

	// Per-stage completion flags.
	Ingested   bool `json:"ingested"`
	Triaged    bool `json:"triaged"`
	Analyzed   bool `json:"analyzed"`
	Correlated bool `json:"correlated"`
	Summarized bool `json:"summarized"`

	// Last recorded failure, if any. Cleared when the stage later succeeds.
	FailedStage   Stage  `json:"failed_stage,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Completed reports whether the given stage has finished for this video.
func (e *Entry) Completed(s Stage) bool {
	switch s {
	case StageIngested:
		return e.Ingested
	case StageTriaged:
		return e.Triaged
	case StageAnalyzed:
		return e.Analyzed
	case StageCorrelated:
		return e.Correlated
	case StageSummarized:
		return e.Summarized
	default:
		return false
	}
}

// SetCompleted flips one stage flag. Completing a stage clears a failure
// recorded for it.
func (e *Entry) SetCompleted(s Stage, done bool) error {
	switch s {
	case StageIngested:
		e.Ingested = done
	case StageTriaged:
		e.Triaged = done
	case StageAnalyzed:
		e.Analyzed = done
	case StageCorrelated:
		e.Correlated = done
	case StageSummarized:
		e.Summarized = done
	default:
		return fmt.Errorf("%w: unknown stage %q", ErrUnknownStage, s)
	}
	if done && e.FailedStage == s {
		e.FailedStage = ""
		e.FailureReason = ""
	}
	e.LastRun = time.Now().UTC()
	return nil
}

// Fail records a stage failure. Prior-stage completion flags stay intact so
// a retry resumes from the last good stage.
func (e *Entry) Fail(s Stage, reason string) {
	e.FailedStage = s
	e.FailureReason = reason
	e.LastRun = time.Now().UTC()
}
