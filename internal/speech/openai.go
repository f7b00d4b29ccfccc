package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultModel         = "tts-1"
	defaultVoice         = "coral"

	// OpenAI caps speech requests well above this; the local limiter just
	// smooths bursts from concurrent answers.
	requestsPerSecond = 8
	requestBurst      = 4

	synthesisTimeout = 60 * time.Second
)

// openAIVoices is the fixed roster the speech endpoint offers. OpenAI
// voices are multilingual and not gendered.
var openAIVoices = []Voice{
	{Name: "alloy", Language: "multilingual", Gender: "neutral"},
	{Name: "ash", Language: "multilingual", Gender: "neutral"},
	{Name: "coral", Language: "multilingual", Gender: "neutral"},
	{Name: "echo", Language: "multilingual", Gender: "neutral"},
	{Name: "fable", Language: "multilingual", Gender: "neutral"},
	{Name: "nova", Language: "multilingual", Gender: "neutral"},
	{Name: "onyx", Language: "multilingual", Gender: "neutral"},
	{Name: "sage", Language: "multilingual", Gender: "neutral"},
	{Name: "shimmer", Language: "multilingual", Gender: "neutral"},
}

// OpenAIConfig configures the OpenAI speech client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Voice        string
	SpeakingRate float64
}

// OpenAISynthesizer streams MP3 audio from the OpenAI speech API.
type OpenAISynthesizer struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenAISynthesizer creates a synthesizer. Only the API key is
// required; everything else has defaults.
func NewOpenAISynthesizer(cfg OpenAIConfig) (*OpenAISynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if cfg.SpeakingRate == 0 {
		cfg.SpeakingRate = 1.0
	}

	return &OpenAISynthesizer{
		cfg: cfg,
		httpClient: &http.Client{
			// No overall timeout: the response body is a stream the caller
			// drains at its own pace.
			Transport: http.DefaultTransport,
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
	}, nil
}

type speechRequest struct {
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Input          string  `json:"input"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize posts the text to /audio/speech and returns the MP3 body
// stream without buffering it.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string, opts Options) (io.ReadCloser, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	voice := opts.Voice
	if voice == "" {
		voice = s.cfg.Voice
	}
	if !s.knowsVoice(voice) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVoice, voice)
	}
	speed := opts.SpeakingRate
	if speed == 0 {
		speed = s.cfg.SpeakingRate
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	payload, err := json.Marshal(speechRequest{
		Model:          s.cfg.Model,
		Voice:          voice,
		Input:          text,
		ResponseFormat: "mp3",
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	// The timeout covers connecting and waiting for response headers.
	// Once the stream is open only Close cancels it, so a caller draining
	// a long utterance slowly is never cut off mid-stream.
	ctx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(synthesisTimeout, cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create speech request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	timer.Stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("speech API returned status %d: %s", resp.StatusCode, body)
	}

	return &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}, nil
}

// Voices returns the fixed OpenAI roster.
func (s *OpenAISynthesizer) Voices(ctx context.Context) ([]Voice, error) {
	voices := make([]Voice, len(openAIVoices))
	copy(voices, openAIVoices)
	return voices, nil
}

// Close is a no-op.
func (s *OpenAISynthesizer) Close() error { return nil }

func (s *OpenAISynthesizer) knowsVoice(name string) bool {
	for _, v := range openAIVoices {
		if v.Name == name {
			return true
		}
	}
	return false
}

// cancelReadCloser ties the request context's lifetime to the body.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
