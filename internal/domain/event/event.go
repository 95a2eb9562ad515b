// Package event contains the unified event model shared by all detectors
// and the per-video event store built from their output.
package event

import "fmt"

// StreamType identifies which detector produced an event. The set is closed;
// scoring and windowing switch exhaustively over it.
type StreamType string

const (
	StreamKill          StreamType = "kill"
	StreamKillstreak    StreamType = "killstreak"
	StreamChatMessage   StreamType = "chat_message"
	StreamChatSentiment StreamType = "chat_sentiment"
	StreamTranscript    StreamType = "transcript_segment"
	StreamAudioSpike    StreamType = "audio_spike"
)

// Streams lists every known stream type.
func Streams() []StreamType {
	return []StreamType{
		StreamKill,
		StreamKillstreak,
		StreamChatMessage,
		StreamChatSentiment,
		StreamTranscript,
		StreamAudioSpike,
	}
}

// Known reports whether t is one of the closed stream set.
func (t StreamType) Known() bool {
	switch t {
	case StreamKill, StreamKillstreak, StreamChatMessage,
		StreamChatSentiment, StreamTranscript, StreamAudioSpike:
		return true
	}
	return false
}

// Priority orders streams by detector reliability for timestamp tie-breaks.
// Lower is more reliable.
func (t StreamType) Priority() int {
	switch t {
	case StreamKill:
		return 0
	case StreamKillstreak:
		return 1
	case StreamTranscript:
		return 2
	case StreamChatSentiment:
		return 3
	case StreamChatMessage:
		return 4
	case StreamAudioSpike:
		return 5
	default:
		return 6
	}
}

// Payload carries the stream-specific fields of an event. The interface is
// sealed: only the payload types below implement it.
type Payload interface {
	Stream() StreamType
}

// KillPayload describes one kill-feed line.
type KillPayload struct {
	Killer   string
	Victim   string
	Weapon   string
	Headshot bool
	Smoke    bool
}

func (KillPayload) Stream() StreamType { return StreamKill }

// KillstreakPayload describes a run of kills credited to one player.
type KillstreakPayload struct {
	Player string
	Count  int
}

func (KillstreakPayload) Stream() StreamType { return StreamKillstreak }

// ChatMessagePayload is raw chat text without a sentiment score.
type ChatMessagePayload struct {
	Sender string
	Text   string
}

func (ChatMessagePayload) Stream() StreamType { return StreamChatMessage }

// ChatSentimentPayload is classified chat text. Polarity is in [-1,1];
// negative values mean rage, positive mean hype.
type ChatSentimentPayload struct {
	Text     string
	Polarity float64
}

func (ChatSentimentPayload) Stream() StreamType { return StreamChatSentiment }

// TranscriptPayload is one spoken-audio segment.
type TranscriptPayload struct {
	Text string
}

func (TranscriptPayload) Stream() StreamType { return StreamTranscript }

// AudioSpikePayload is a raw audio-energy spike. Energy is normalized [0,1].
type AudioSpikePayload struct {
	Energy float64
}

func (AudioSpikePayload) Stream() StreamType { return StreamAudioSpike }

// Event is the atomic unit: a single timestamped observation from one
// detector. Start and End are seconds from video start; End == Start for
// point events.
type Event struct {
	ID         string
	VideoID    string
	Type       StreamType
	Start      float64
	End        float64
	Confidence float64
	Payload    Payload
}

// Validate reports ErrMalformedEvent when a required invariant is broken.
func (e Event) Validate() error {
	if !e.Type.Known() {
		return fmt.Errorf("%w: unknown stream type %q", ErrMalformedEvent, e.Type)
	}
	if e.End < e.Start {
		return fmt.Errorf("%w: end %.3f before start %.3f", ErrMalformedEvent, e.End, e.Start)
	}
	if e.Start < 0 {
		return fmt.Errorf("%w: negative start %.3f", ErrMalformedEvent, e.Start)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.3f outside [0,1]", ErrMalformedEvent, e.Confidence)
	}
	if e.Payload == nil {
		return fmt.Errorf("%w: missing payload", ErrMalformedEvent)
	}
	if e.Payload.Stream() != e.Type {
		return fmt.Errorf("%w: payload stream %q does not match type %q",
			ErrMalformedEvent, e.Payload.Stream(), e.Type)
	}
	return nil
}
