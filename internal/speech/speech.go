// Package speech converts answer text into streamed audio.
//
// The synthesizer is a capability interface so providers with richer
// voice models (language, gender, speaking rate) fit behind the same
// surface as OpenAI's fixed voice roster.
package speech

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors.
var (
	// ErrEmptyText indicates there is nothing to synthesize.
	ErrEmptyText = errors.New("empty text")

	// ErrUnknownVoice indicates a voice the provider does not offer.
	ErrUnknownVoice = errors.New("unknown voice")
)

// Options select how the text is spoken. Zero values fall back to the
// provider's configured defaults.
type Options struct {
	Voice        string
	Language     string
	Gender       string
	SpeakingRate float64
}

// Voice describes one voice a provider offers.
type Voice struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Gender   string `json:"gender"`
}

// Synthesizer streams spoken audio for text.
type Synthesizer interface {
	// Synthesize returns an MP3 audio stream for the text. The caller owns
	// the reader and must close it.
	Synthesize(ctx context.Context, text string, opts Options) (io.ReadCloser, error)

	// Voices lists the voices this provider offers.
	Voices(ctx context.Context) ([]Voice, error)

	// Close releases provider resources.
	Close() error
}
