package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAISynthesizer(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewOpenAISynthesizer(OpenAIConfig{})
		assert.Error(t, err)
	})

	t.Run("defaults applied", func(t *testing.T) {
		s, err := NewOpenAISynthesizer(OpenAIConfig{APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, defaultModel, s.cfg.Model)
		assert.Equal(t, defaultVoice, s.cfg.Voice)
		assert.Equal(t, 1.0, s.cfg.SpeakingRate)
	})
}

func TestSynthesize(t *testing.T) {
	var gotBody speechRequest
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/audio/speech", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-fake-mp3-bytes"))
	}))
	defer srv.Close()

	s, err := NewOpenAISynthesizer(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	stream, err := s.Synthesize(context.Background(), "The widget is 40mm.", Options{})
	require.NoError(t, err)
	defer stream.Close()

	audio, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "ID3-fake-mp3-bytes", string(audio))

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "tts-1", gotBody.Model)
	assert.Equal(t, "coral", gotBody.Voice)
	assert.Equal(t, "The widget is 40mm.", gotBody.Input)
	assert.Equal(t, "mp3", gotBody.ResponseFormat)
	assert.Equal(t, 1.0, gotBody.Speed)
}

func TestSynthesizeOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nova", body.Voice)
		assert.Equal(t, 1.25, body.Speed)
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	s, err := NewOpenAISynthesizer(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	stream, err := s.Synthesize(context.Background(), "hi", Options{Voice: "nova", SpeakingRate: 1.25})
	require.NoError(t, err)
	stream.Close()
}

func TestSynthesizeErrors(t *testing.T) {
	s, err := NewOpenAISynthesizer(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)

	t.Run("empty text", func(t *testing.T) {
		_, err := s.Synthesize(context.Background(), "", Options{})
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("unknown voice", func(t *testing.T) {
		_, err := s.Synthesize(context.Background(), "hi", Options{Voice: "hal9000"})
		assert.ErrorIs(t, err, ErrUnknownVoice)
	})

	t.Run("api failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"invalid_api_key"}`, http.StatusUnauthorized)
		}))
		defer srv.Close()

		failing, err := NewOpenAISynthesizer(OpenAIConfig{APIKey: "sk-bad", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = failing.Synthesize(context.Background(), "hi", Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

func TestSynthesizeStreamLifetime(t *testing.T) {
	handlerDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("chunk-1"))
		w.(http.Flusher).Flush()
		// Hold the stream open until the client hangs up.
		<-r.Context().Done()
		close(handlerDone)
	}))
	defer srv.Close()

	s, err := NewOpenAISynthesizer(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	stream, err := s.Synthesize(context.Background(), "A long answer.", Options{})
	require.NoError(t, err)

	buf := make([]byte, len("chunk-1"))
	_, err = io.ReadFull(stream, buf)
	require.NoError(t, err)
	assert.Equal(t, "chunk-1", string(buf))

	require.NoError(t, stream.Close())
	select {
	case <-handlerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("closing the stream did not cancel the request")
	}
}

func TestVoices(t *testing.T) {
	s, err := NewOpenAISynthesizer(OpenAIConfig{APIKey: "sk-test"})
	require.NoError(t, err)

	voices, err := s.Voices(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, voices)

	names := make([]string, len(voices))
	for i, v := range voices {
		names[i] = v.Name
	}
	assert.Contains(t, names, "coral")
}
