// Package artifact reads and writes per-detector event artifacts: the
// structured record streams each detector emits per video, and their
// normalization into the unified event shape.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/strayfire/chaos/internal/domain/event"
)

// Detector names, one artifact file per detector per video.
const (
	DetectorKillfeed = "killfeed"
	DetectorChat     = "chat"
	DetectorSpeech   = "speech"
	DetectorAudio    = "audio"
)

// Detectors lists every known detector.
func Detectors() []string {
	return []string{DetectorKillfeed, DetectorChat, DetectorSpeech, DetectorAudio}
}

// Record is one raw detector observation as serialized in artifacts and
// detector responses. Payload is decoded according to Type.
type Record struct {
	Type       string          `json:"type"`
	Start      float64         `json:"timestamp_start"`
	End        float64         `json:"timestamp_end"`
	Confidence float64         `json:"confidence"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Payload field sets, one per stream type.
type killFields struct {
	Killer   string `json:"killer"`
	Victim   string `json:"victim"`
	Weapon   string `json:"weapon,omitempty"`
	Headshot bool   `json:"headshot,omitempty"`
	Smoke    bool   `json:"smoke,omitempty"`
}

type killstreakFields struct {
	Player string `json:"player"`
	Count  int    `json:"count"`
}

type chatMessageFields struct {
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text"`
}

type chatSentimentFields struct {
	Text     string  `json:"text"`
	Polarity float64 `json:"polarity"`
}

type transcriptFields struct {
	Text string `json:"text"`
}

type audioSpikeFields struct {
	Energy float64 `json:"energy"`
}

// decodePayload returns the typed payload for a record, or nil when the
// type is unknown or the payload does not parse. A nil payload fails event
// validation downstream and is dropped there, keeping recovery local.
func decodePayload(r Record) event.Payload {
	unmarshal := func(v any) bool {
		if len(r.Payload) == 0 {
			return false
		}
		return json.Unmarshal(r.Payload, v) == nil
	}

	switch event.StreamType(r.Type) {
	case event.StreamKill:
		var f killFields
		if unmarshal(&f) {
			return event.KillPayload{Killer: f.Killer, Victim: f.Victim, Weapon: f.Weapon, Headshot: f.Headshot, Smoke: f.Smoke}
		}
	case event.StreamKillstreak:
		var f killstreakFields
		if unmarshal(&f) {
			return event.KillstreakPayload{Player: f.Player, Count: f.Count}
		}
	case event.StreamChatMessage:
		var f chatMessageFields
		if unmarshal(&f) {
			return event.ChatMessagePayload{Sender: f.Sender, Text: f.Text}
		}
	case event.StreamChatSentiment:
		var f chatSentimentFields
		if unmarshal(&f) {
			return event.ChatSentimentPayload{Text: f.Text, Polarity: f.Polarity}
		}
	case event.StreamTranscript:
		var f transcriptFields
		if unmarshal(&f) {
			return event.TranscriptPayload{Text: f.Text}
		}
	case event.StreamAudioSpike:
		var f audioSpikeFields
		if unmarshal(&f) {
			return event.AudioSpikePayload{Energy: f.Energy}
		}
	}
	return nil
}

// Normalize converts raw detector records into unified events for one
// video. Every event gets a fresh ID. Malformed records still produce an
// event so the store can count and log the drop.
func Normalize(videoID string, records []Record) []event.Event {
	out := make([]event.Event, 0, len(records))
	for _, r := range records {
		out = append(out, event.Event{
			ID:         uuid.New().String(),
			VideoID:    videoID,
			Type:       event.StreamType(r.Type),
			Start:      r.Start,
			End:        r.End,
			Confidence: r.Confidence,
			Payload:    decodePayload(r),
		})
	}
	return out
}

// File is the on-disk artifact for one detector's output on one video.
type File struct {
	VideoID     string    `json:"video_id"`
	Detector    string    `json:"detector"`
	GeneratedAt time.Time `json:"generated_at"`
	Records     []Record  `json:"records"`
}

// dir returns the artifact directory for one video.
func dir(dataDir, videoID string) string {
	return filepath.Join(dataDir, "artifacts", videoID)
}

// Path returns the artifact file path for one detector on one video.
func Path(dataDir, videoID, detector string) string {
	return filepath.Join(dir(dataDir, videoID), detector+".json")
}

// Write stores a detector's records for a video, overwriting any prior run.
func Write(dataDir, videoID, detector string, records []Record) error {
	if err := os.MkdirAll(dir(dataDir, videoID), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := os.Create(Path(dataDir, videoID, detector))
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(File{
		VideoID:     videoID,
		Detector:    detector,
		GeneratedAt: time.Now().UTC(),
		Records:     records,
	})
}

// Read loads a detector's records for a video. A missing artifact returns
// no records: a detector that found nothing and one that never ran read the
// same at correlation time.
func Read(dataDir, videoID, detector string) ([]Record, error) {
	f, err := os.Open(Path(dataDir, videoID, detector))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	var file File
	if err := json.NewDecoder(f).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return file.Records, nil
}

// ReadAll loads and concatenates every detector's records for a video.
func ReadAll(dataDir, videoID string) ([]Record, error) {
	var out []Record
	for _, det := range Detectors() {
		recs, err := Read(dataDir, videoID, det)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}
