package artifact

import "encoding/json"

// Record constructors, used by the synthetic generator and tests. Encoding
// the payload field sets here keeps the wire shape in one package.

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// the payload field sets are plain structs; this cannot fail
		panic(err)
	}
	return b
}

// KillRecord builds a kill-feed record.
func KillRecord(start, conf float64, killer, victim, weapon string, headshot, smoke bool) Record {
	return Record{
		Type: "kill", Start: start, End: start, Confidence: conf,
		Payload: mustRaw(killFields{Killer: killer, Victim: victim, Weapon: weapon, Headshot: headshot, Smoke: smoke}),
	}
}

// KillstreakRecord builds a killstreak record.
func KillstreakRecord(start, end, conf float64, player string, count int) Record {
	return Record{
		Type: "killstreak", Start: start, End: end, Confidence: conf,
		Payload: mustRaw(killstreakFields{Player: player, Count: count}),
	}
}

// ChatMessageRecord builds a raw chat-text record.
func ChatMessageRecord(start, conf float64, sender, text string) Record {
	return Record{
		Type: "chat_message", Start: start, End: start, Confidence: conf,
		Payload: mustRaw(chatMessageFields{Sender: sender, Text: text}),
	}
}

// ChatSentimentRecord builds a sentiment-classified chat record.
func ChatSentimentRecord(start, conf float64, text string, polarity float64) Record {
	return Record{
		Type: "chat_sentiment", Start: start, End: start, Confidence: conf,
		Payload: mustRaw(chatSentimentFields{Text: text, Polarity: polarity}),
	}
}

// TranscriptRecord builds a spoken-audio segment record.
func TranscriptRecord(start, end, conf float64, text string) Record {
	return Record{
		Type: "transcript_segment", Start: start, End: end, Confidence: conf,
		Payload: mustRaw(transcriptFields{Text: text}),
	}
}

// AudioSpikeRecord builds an audio-energy spike record.
func AudioSpikeRecord(start, conf, energy float64) Record {
	return Record{
		Type: "audio_spike", Start: start, End: start, Confidence: conf,
		Payload: mustRaw(audioSpikeFields{Energy: energy}),
	}
}

// Energy returns the normalized energy of an audio-spike record, or zero
// for any other record type.
func (r Record) Energy() float64 {
	if r.Type != "audio_spike" || len(r.Payload) == 0 {
		return 0
	}
	var f audioSpikeFields
	if err := json.Unmarshal(r.Payload, &f); err != nil {
		return 0
	}
	return f.Energy
}
