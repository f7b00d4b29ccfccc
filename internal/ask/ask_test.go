package ask

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/fyrsmithlabs/askd/internal/apierr"
	"github.com/fyrsmithlabs/askd/internal/answer"
	"github.com/fyrsmithlabs/askd/internal/directory"
	"github.com/fyrsmithlabs/askd/internal/docstore"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/retriever"
	"github.com/fyrsmithlabs/askd/internal/speech"
)

type staticModel struct{ reply string }

func (m *staticModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *staticModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.reply, nil
}

type staticEmbedder struct{ vector []float32 }

func (e *staticEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector, nil
}
func (e *staticEmbedder) Dimension() int { return len(e.vector) }
func (e *staticEmbedder) Close() error   { return nil }

type fakeSynth struct {
	audio  string
	err    error
	called bool
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, opts speech.Options) (io.ReadCloser, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.audio)), nil
}
func (f *fakeSynth) Voices(ctx context.Context) ([]speech.Voice, error) { return nil, nil }
func (f *fakeSynth) Close() error                                       { return nil }

func newTestService(t *testing.T, reply string, synth speech.Synthesizer) *Service {
	t.Helper()

	dir, err := directory.New(directory.NewMemoryStore(), logging.NewNop())
	require.NoError(t, err)
	_, _, err = dir.Register(context.Background(), directory.RegisterParams{
		CustomerID:          "acme",
		Name:                "Acme Corp",
		Email:               "ops@acme.test",
		DatastoreEndpoint:   "memory://acme",
		DatastoreCredential: "local",
	})
	require.NoError(t, err)

	factory := docstore.NewFactory(logging.NewNop())
	t.Cleanup(func() { factory.Close() })
	store, err := factory.Memory("acme")
	require.NoError(t, err)
	require.NoError(t, store.AddRecord(context.Background(), docstore.Record{
		ID: "p1", ProductCode: "W-40", Content: "Steel widget, 40mm",
	}, []float32{1, 0}))

	ret := retriever.New(dir, &staticEmbedder{vector: []float32{1, 0}}, factory, retriever.Config{}, logging.NewNop())

	gen, err := answer.New(&staticModel{reply: reply}, answer.Config{MaxTokens: 150, Temperature: 0.3})
	require.NoError(t, err)

	return New(ret, gen, synth, logging.NewNop())
}

func TestText(t *testing.T) {
	svc := newTestService(t, "The widget is 40mm. Do you have any other questions?", nil)

	out, err := svc.Text(context.Background(), Query{
		CustomerID:  "acme",
		ProductCode: "W-40",
		Question:    "how big is it?",
	})
	require.NoError(t, err)
	assert.Equal(t, "The widget is 40mm. Do you have any other questions?", out.Answer)
	assert.Equal(t, "how big is it?", out.Question)
	assert.Equal(t, "W-40", out.ProductCode)
	assert.Equal(t, "acme", out.CustomerID)
	assert.False(t, out.Timestamp.IsZero())
}

func TestTextValidation(t *testing.T) {
	svc := newTestService(t, "ok", nil)

	tests := []struct {
		name  string
		query Query
	}{
		{"missing product code", Query{CustomerID: "acme", Question: "hi"}},
		{"missing question", Query{CustomerID: "acme", ProductCode: "W-40"}},
		{"missing customer", Query{ProductCode: "W-40", Question: "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Text(context.Background(), tt.query)
			assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
		})
	}
}

func TestAudio(t *testing.T) {
	t.Run("streams audio with sentences", func(t *testing.T) {
		synth := &fakeSynth{audio: "mp3-bytes"}
		svc := newTestService(t, "It is 40mm. It is steel. Do you have any other questions?", synth)

		out, err := svc.Audio(context.Background(), Query{
			CustomerID:  "acme",
			ProductCode: "W-40",
			Question:    "how big is it?",
		}, speech.Options{})
		require.NoError(t, err)
		defer out.Audio.Close()

		assert.True(t, synth.called)
		assert.Equal(t, []string{"It is 40mm.", "It is steel.", "Do you have any other questions?"}, out.Sentences)

		audio, err := io.ReadAll(out.Audio)
		require.NoError(t, err)
		assert.Equal(t, "mp3-bytes", string(audio))
	})

	t.Run("no synthesizer configured", func(t *testing.T) {
		svc := newTestService(t, "ok", nil)
		_, err := svc.Audio(context.Background(), Query{
			CustomerID: "acme", ProductCode: "W-40", Question: "hi",
		}, speech.Options{})
		assert.Equal(t, apierr.KindInternal, apierr.KindOf(err))
	})

	t.Run("unknown voice is a validation error", func(t *testing.T) {
		synth := &fakeSynth{err: fmt.Errorf("%w: %q", speech.ErrUnknownVoice, "basso")}
		svc := newTestService(t, "ok", synth)
		_, err := svc.Audio(context.Background(), Query{
			CustomerID: "acme", ProductCode: "W-40", Question: "hi",
		}, speech.Options{Voice: "basso"})
		assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
	})

	t.Run("synthesizer failure is upstream", func(t *testing.T) {
		synth := &fakeSynth{err: errors.New("tts unavailable")}
		svc := newTestService(t, "ok", synth)
		_, err := svc.Audio(context.Background(), Query{
			CustomerID: "acme", ProductCode: "W-40", Question: "hi",
		}, speech.Options{})
		assert.Equal(t, apierr.KindUpstream, apierr.KindOf(err))
	})
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"multiple terminators", "One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"no terminator", "just a fragment", []string{"just a fragment"}},
		{"trailing fragment dropped by pattern", "Done. trailing", []string{"Done."}},
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}
