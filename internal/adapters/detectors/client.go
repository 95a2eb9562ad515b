// Package detectors holds HTTP clients for the four external detector
// services. The services own the expensive work (OCR, speech-to-text,
// audio-feature extraction); this package only speaks their wire contract.
package detectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/strayfire/chaos/internal/adapters/artifact"
)

// defaultTimeout bounds one detector call. Deep analysis of a long
// recording is slow; the services stream progress server-side.
const defaultTimeout = 10 * time.Minute

// URLs holds the base URL of each detector service.
type URLs struct {
	Killfeed string
	Chat     string
	Speech   string
	Audio    string
}

// AnalyzeResponse is the common detector reply: the records found plus the
// probed recording duration.
type AnalyzeResponse struct {
	DurationSeconds float64           `json:"duration_seconds"`
	Records         []artifact.Record `json:"records"`
}

// analyzeRequest is the common detector request body.
type analyzeRequest struct {
	VideoPath string `json:"video_path"`
}

// Client calls the detector services.
type Client struct {
	c    *http.Client
	urls URLs
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.c.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.c = hc
		}
	}
}

// NewClient creates a detector client for the given service URLs.
func NewClient(urls URLs, opts ...Option) *Client {
	c := &Client{
		c:    &http.Client{Timeout: defaultTimeout},
		urls: urls,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// analyze posts the video path to one detector's /analyze endpoint and
// decodes the typed response.
func (c *Client) analyze(ctx context.Context, name, baseURL, videoPath string) (*AnalyzeResponse, error) {
	body, err := json.Marshal(analyzeRequest{VideoPath: videoPath})
	if err != nil {
		return nil, fmt.Errorf("%s encode: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s call: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %s: %s", name, resp.Status, string(msg))
	}

	var out AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s decode: %w", name, err)
	}
	return &out, nil
}

// Killfeed runs the kill-feed OCR detector on one video.
func (c *Client) Killfeed(ctx context.Context, videoPath string) (*AnalyzeResponse, error) {
	return c.analyze(ctx, artifact.DetectorKillfeed, c.urls.Killfeed, videoPath)
}

// Chat runs the chat-box OCR/sentiment detector on one video.
func (c *Client) Chat(ctx context.Context, videoPath string) (*AnalyzeResponse, error) {
	return c.analyze(ctx, artifact.DetectorChat, c.urls.Chat, videoPath)
}

// Speech runs the speech-to-text detector on one video.
func (c *Client) Speech(ctx context.Context, videoPath string) (*AnalyzeResponse, error) {
	return c.analyze(ctx, artifact.DetectorSpeech, c.urls.Speech, videoPath)
}

// Audio runs the audio-energy detector on one video. This is the cheap
// detector triage relies on; its response also carries the duration.
func (c *Client) Audio(ctx context.Context, videoPath string) (*AnalyzeResponse, error) {
	return c.analyze(ctx, artifact.DetectorAudio, c.urls.Audio, videoPath)
}
