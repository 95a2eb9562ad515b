package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/strayfire/chaos/pkg/metrics"
)

// fileFormat is the on-disk shape of the pipeline manifest.
type fileFormat struct {
	UpdatedAt time.Time `json:"updated_at"`
	Videos    []Entry   `json:"videos"`
}

// updateMsg carries one mutation to the writer goroutine.
type updateMsg struct {
	videoID string
	create  *Entry       // non-nil: insert if absent
	apply   func(*Entry) // nil for pure inserts
	reply   chan error
}

// Store is the pipeline manifest. Reads take a lock-protected snapshot;
// writes serialize through a single writer goroutine so two workers
// finishing near-simultaneously can never lose an update, and each write
// persists by atomic replace.
type Store struct {
	path string

	mu      sync.RWMutex
	entries map[string]*Entry

	updates chan updateMsg
	done    chan struct{}
	once    sync.Once
}

// Default update queue depth. Workers block when the writer falls behind.
const updateQueueDepth = 64

// Open loads the manifest at path, creating an empty store when the file
// does not exist, and starts the writer.
func Open(ctx context.Context, path string) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make(map[string]*Entry),
		updates: make(chan updateMsg, updateQueueDepth),
		done:    make(chan struct{}),
	}

	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// first run
	case err != nil:
		return nil, fmt.Errorf("open manifest: %w", err)
	default:
		defer f.Close()
		var file fileFormat
		if err := json.NewDecoder(f).Decode(&file); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
		for i := range file.Videos {
			e := file.Videos[i]
			s.entries[e.VideoID] = &e
		}
	}

	metrics.UpdateVideosTotal(len(s.entries))
	go s.writer(ctx)
	return s, nil
}

// writer is the single goroutine applying and persisting updates.
func (s *Store) writer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg := <-s.updates:
			msg.reply <- s.applyOne(msg)
		}
	}
}

func (s *Store) applyOne(msg updateMsg) error {
	s.mu.Lock()
	e, ok := s.entries[msg.videoID]
	if !ok {
		if msg.create == nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrNotFound, msg.videoID)
		}
		created := *msg.create
		e = &created
		s.entries[msg.videoID] = e
	}
	if msg.apply != nil {
		msg.apply(e)
	}
	metrics.UpdateVideosTotal(len(s.entries))
	s.mu.Unlock()

	return s.persist()
}

// persist writes the manifest via temp file plus rename. A process-level
// interrupt leaves either the old file or the new one, never a torn write.
func (s *Store) persist() error {
	s.mu.RLock()
	file := fileFormat{UpdatedAt: time.Now().UTC(), Videos: make([]Entry, 0, len(s.entries))}
	for _, e := range s.entries {
		file.Videos = append(file.Videos, *e)
	}
	s.mu.RUnlock()

	sort.Slice(file.Videos, func(i, j int) bool {
		return file.Videos[i].VideoID < file.Videos[j].VideoID
	})

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// send routes one update through the writer and waits for persistence.
func (s *Store) send(ctx context.Context, msg updateMsg) error {
	msg.reply = make(chan error, 1)
	select {
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.updates <- msg:
	}
	select {
	case err := <-msg.reply:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure inserts a manifest row for a video if absent and marks it ingested.
func (s *Store) Ensure(ctx context.Context, videoID, path string) error {
	now := time.Now().UTC()
	return s.send(ctx, updateMsg{
		videoID: videoID,
		create: &Entry{
			VideoID:  videoID,
			Path:     path,
			Ingested: true,
			LastRun:  now,
		},
		apply: func(e *Entry) {
			e.Path = path
			e.Ingested = true
			e.LastRun = now
		},
	})
}

// Apply runs fn against one existing entry under the single writer.
func (s *Store) Apply(ctx context.Context, videoID string, fn func(*Entry)) error {
	return s.send(ctx, updateMsg{videoID: videoID, apply: fn})
}

// MarkCompleted records stage completion for one video.
func (s *Store) MarkCompleted(ctx context.Context, videoID string, stage Stage) error {
	var stageErr error
	err := s.Apply(ctx, videoID, func(e *Entry) {
		stageErr = e.SetCompleted(stage, true)
	})
	if err != nil {
		return err
	}
	return stageErr
}

// MarkFailed records a stage failure for one video, leaving prior-stage
// completion flags untouched.
func (s *Store) MarkFailed(ctx context.Context, videoID string, stage Stage, reason string) error {
	return s.Apply(ctx, videoID, func(e *Entry) {
		e.Fail(stage, reason)
	})
}

// Get returns a copy of one entry.
func (s *Store) Get(videoID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[videoID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns copies of all entries ordered by video ID.
func (s *Store) List() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].VideoID < out[j].VideoID })
	return out
}

// Len returns the number of tracked videos.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset clears every entry. Only an explicit reset deletes manifest rows.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	metrics.UpdateVideosTotal(0)
	s.mu.Unlock()
	return s.persist()
}

// Close stops the writer. Updates sent after Close return ErrClosed.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.done)
	})
	return nil
}
