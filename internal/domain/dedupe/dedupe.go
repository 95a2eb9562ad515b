// Package dedupe suppresses repeated detections of the same real-world
// occurrence. The kill-feed detector re-reads the same kill line on every
// sampled frame while it stays on screen, so one kill surfaces as a burst of
// near-identical events.
package dedupe

// KillMemory remembers recently seen detection keys and suppresses repeats
// arriving within the memory window. Callers must feed detections in
// timestamp order.
type KillMemory struct {
	window   float64
	lastSeen map[string]float64
}

// Option applies a configuration option to the KillMemory.
type Option func(*KillMemory)

// WithWindow sets the suppression window in seconds. A non-positive window
// disables suppression entirely.
func WithWindow(seconds float64) Option {
	return func(m *KillMemory) {
		m.window = seconds
	}
}

// NewKillMemory creates a KillMemory with configuration options.
func NewKillMemory(opts ...Option) *KillMemory {
	m := &KillMemory{
		window:   7.0, // default: a kill line stays on screen about this long
		lastSeen: make(map[string]float64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SeenAndRecord checks whether key was seen within the memory window of ts
// and records the sighting. Returns true when the detection is a repeat and
// should be suppressed.
func (m *KillMemory) SeenAndRecord(key string, ts float64) bool {
	if m.window <= 0 {
		return false
	}
	last, ok := m.lastSeen[key]
	m.lastSeen[key] = ts
	if !ok {
		return false
	}
	return ts-last < m.window
}

// Size returns the number of distinct keys tracked.
func (m *KillMemory) Size() int {
	return len(m.lastSeen)
}
