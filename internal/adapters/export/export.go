// Package export writes the per-video highlight manifests and the run
// summary: the JSON artifacts downstream clipping tools consume.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/strayfire/chaos/internal/domain/event"
	"github.com/strayfire/chaos/internal/domain/window"
	"github.com/strayfire/chaos/pkg/metrics"
)

// EventRef is the provenance trail for one contributing event: enough to
// audit why a highlight scored what it did without reloading artifacts.
type EventRef struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Start      float64 `json:"timestamp_start"`
	End        float64 `json:"timestamp_end"`
	Confidence float64 `json:"confidence"`
	Detail     string  `json:"detail,omitempty"`
}

// Highlight is one exported clip candidate.
type Highlight struct {
	ID             string     `json:"id"`
	Start          float64    `json:"start_seconds"`
	End            float64    `json:"end_seconds"`
	CompositeScore float64    `json:"composite_score"`
	Tags           []string   `json:"tags,omitempty"`
	Events         []EventRef `json:"events"`
}

// File is the on-disk highlight manifest for one video.
type File struct {
	VideoID     string      `json:"video_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Highlights  []Highlight `json:"highlights"`
}

// detail renders a short human-readable line per payload type.
func detail(p event.Payload) string {
	switch v := p.(type) {
	case event.KillPayload:
		return fmt.Sprintf("%s -> %s", v.Killer, v.Victim)
	case event.KillstreakPayload:
		return fmt.Sprintf("%s x%d", v.Player, v.Count)
	case event.ChatMessagePayload:
		return v.Text
	case event.ChatSentimentPayload:
		return fmt.Sprintf("%q (%.2f)", v.Text, v.Polarity)
	case event.TranscriptPayload:
		return v.Text
	case event.AudioSpikePayload:
		return fmt.Sprintf("energy %.2f", v.Energy)
	}
	return ""
}

// FromWindows converts ranked windows into export highlights, assigning
// each a fresh ID.
func FromWindows(windows []window.Window) []Highlight {
	out := make([]Highlight, 0, len(windows))
	for _, w := range windows {
		refs := make([]EventRef, 0, len(w.Events))
		for _, e := range w.Events {
			refs = append(refs, EventRef{
				ID:         e.ID,
				Type:       string(e.Type),
				Start:      e.Start,
				End:        e.End,
				Confidence: e.Confidence,
				Detail:     detail(e.Payload),
			})
		}
		out = append(out, Highlight{
			ID:             uuid.New().String(),
			Start:          w.Start,
			End:            w.End,
			CompositeScore: w.Score,
			Tags:           w.Tags,
			Events:         refs,
		})
	}
	return out
}

// Path returns the highlight manifest path for one video.
func Path(dataDir, videoID string) string {
	return filepath.Join(dataDir, "highlights", videoID+".json")
}

// Write stores a video's highlight manifest, overwriting any prior run.
func Write(dataDir, videoID string, highlights []Highlight) error {
	dir := filepath.Join(dataDir, "highlights")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create highlights dir: %w", err)
	}
	f, err := os.Create(Path(dataDir, videoID))
	if err != nil {
		return fmt.Errorf("create highlight manifest: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(File{
		VideoID:     videoID,
		GeneratedAt: time.Now().UTC(),
		Highlights:  highlights,
	}); err != nil {
		return fmt.Errorf("encode highlight manifest: %w", err)
	}

	for _, h := range highlights {
		metrics.RecordHighlightExported(h.CompositeScore)
	}
	return nil
}

// Read loads a video's highlight manifest. Missing manifests read as empty.
func Read(dataDir, videoID string) ([]Highlight, error) {
	f, err := os.Open(Path(dataDir, videoID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open highlight manifest: %w", err)
	}
	defer f.Close()

	var file File
	if err := json.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode highlight manifest: %w", err)
	}
	return file.Highlights, nil
}

// Summary aggregates a whole run across videos.
type Summary struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	Videos          int            `json:"videos"`
	Highlights      int            `json:"highlights"`
	TopScore        float64        `json:"top_score"`
	KillsByPlayer   map[string]int `json:"kills_by_player,omitempty"`
	HighlightsByTag map[string]int `json:"highlights_by_tag,omitempty"`
}

// SummaryPath returns the run summary path.
func SummaryPath(dataDir string) string {
	return filepath.Join(dataDir, "summary.json")
}

// BuildSummary folds per-video highlight manifests into one run summary.
// Kill counts come from the kill provenance details embedded in each
// highlight, so the summary never rereads detector artifacts.
func BuildSummary(perVideo map[string][]Highlight) Summary {
	s := Summary{
		GeneratedAt:     time.Now().UTC(),
		Videos:          len(perVideo),
		KillsByPlayer:   map[string]int{},
		HighlightsByTag: map[string]int{},
	}
	for _, highlights := range perVideo {
		s.Highlights += len(highlights)
		for _, h := range highlights {
			if h.CompositeScore > s.TopScore {
				s.TopScore = h.CompositeScore
			}
			for _, tag := range h.Tags {
				s.HighlightsByTag[tag]++
			}
			for _, ref := range h.Events {
				if ref.Type != string(event.StreamKill) {
					continue
				}
				if killer := killerFromDetail(ref.Detail); killer != "" {
					s.KillsByPlayer[killer]++
				}
			}
		}
	}
	if len(s.KillsByPlayer) == 0 {
		s.KillsByPlayer = nil
	}
	if len(s.HighlightsByTag) == 0 {
		s.HighlightsByTag = nil
	}
	return s
}

// killerFromDetail extracts the killer name from a kill detail line.
func killerFromDetail(detail string) string {
	killer, _, found := strings.Cut(detail, " -> ")
	if !found {
		return ""
	}
	return killer
}

// WriteSummary stores the run summary, overwriting any prior run.
func WriteSummary(dataDir string, s Summary) error {
	f, err := os.Create(SummaryPath(dataDir))
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// TopPlayers returns players ordered by kill count, ties by name.
func (s Summary) TopPlayers() []string {
	players := make([]string, 0, len(s.KillsByPlayer))
	for p := range s.KillsByPlayer {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		a, b := players[i], players[j]
		if s.KillsByPlayer[a] != s.KillsByPlayer[b] {
			return s.KillsByPlayer[a] > s.KillsByPlayer[b]
		}
		return a < b
	})
	return players
}
