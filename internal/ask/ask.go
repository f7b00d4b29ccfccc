// Package ask orchestrates the answer pipeline: retrieve the customer's
// product records, generate an answer, and optionally speak it.
package ask

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/apierr"
	"github.com/fyrsmithlabs/askd/internal/answer"
	"github.com/fyrsmithlabs/askd/internal/logging"
	"github.com/fyrsmithlabs/askd/internal/retriever"
	"github.com/fyrsmithlabs/askd/internal/speech"
)

// sentencePattern splits an answer into speakable sentences. Anything
// without terminal punctuation stays as one sentence.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Query is one customer question.
type Query struct {
	CustomerID  string
	ProductCode string
	Question    string
}

// Validate checks the query's required fields.
func (q Query) Validate() error {
	if q.CustomerID == "" {
		return apierr.Validation("customerId is required")
	}
	if q.ProductCode == "" || q.Question == "" {
		return apierr.Validation("productCode and question are required")
	}
	return nil
}

// TextAnswer is the JSON answer shape.
type TextAnswer struct {
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	ProductCode string    `json:"productCode"`
	CustomerID  string    `json:"customerId"`
	Timestamp   time.Time `json:"timestamp"`
}

// AudioAnswer couples the spoken stream with the text it was generated
// from. The caller owns Audio and must close it.
type AudioAnswer struct {
	Text        string
	Sentences   []string
	ProductCode string
	CustomerID  string
	Audio       io.ReadCloser
}

// Service runs the pipeline.
type Service struct {
	retriever *retriever.Retriever
	generator *answer.Generator
	synth     speech.Synthesizer
	logger    *logging.Logger
	now       func() time.Time
}

// New creates the ask service. synth may be nil when audio is disabled;
// Audio then fails with an internal error.
func New(r *retriever.Retriever, g *answer.Generator, synth speech.Synthesizer, logger *logging.Logger) *Service {
	return &Service{
		retriever: r,
		generator: g,
		synth:     synth,
		logger:    logger.Named("ask"),
		now:       time.Now,
	}
}

// Text answers a question as JSON.
func (s *Service) Text(ctx context.Context, q Query) (*TextAnswer, error) {
	text, err := s.answerText(ctx, q)
	if err != nil {
		return nil, err
	}
	return &TextAnswer{
		Question:    q.Question,
		Answer:      text,
		ProductCode: q.ProductCode,
		CustomerID:  q.CustomerID,
		Timestamp:   s.now().UTC(),
	}, nil
}

// Audio answers a question as a spoken MP3 stream plus the answer text
// for the metadata side channel.
func (s *Service) Audio(ctx context.Context, q Query, opts speech.Options) (*AudioAnswer, error) {
	if s.synth == nil {
		return nil, apierr.Internal(nil, "speech synthesis is not configured")
	}

	text, err := s.answerText(ctx, q)
	if err != nil {
		return nil, err
	}

	stream, err := s.synth.Synthesize(ctx, text, opts)
	if err != nil {
		if errors.Is(err, speech.ErrUnknownVoice) {
			return nil, apierr.Validation("unknown voice %q", opts.Voice)
		}
		return nil, apierr.Upstream(err, "audio generation failed")
	}

	return &AudioAnswer{
		Text:        text,
		Sentences:   SplitSentences(text),
		ProductCode: q.ProductCode,
		CustomerID:  q.CustomerID,
		Audio:       stream,
	}, nil
}

func (s *Service) answerText(ctx context.Context, q Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}

	start := s.now()
	result, err := s.retriever.Retrieve(ctx, q.CustomerID, q.ProductCode, q.Question)
	if err != nil {
		return "", err
	}
	s.logger.Info(ctx, "product records retrieved",
		zap.String("product.code", q.ProductCode),
		zap.Int("records", len(result.Records)),
		zap.Bool("exact_match", result.ExactMatch),
		zap.Duration("elapsed", s.now().Sub(start)))

	start = s.now()
	text, err := s.generator.Generate(ctx, q.Question, result.Records)
	if err != nil {
		return "", err
	}
	s.logger.Info(ctx, "answer generated",
		zap.Int("answer_length", len(text)),
		zap.Duration("elapsed", s.now().Sub(start)))
	return text, nil
}

// SplitSentences breaks an answer into trimmed sentences for the
// metadata header. Text without terminal punctuation comes back whole.
func SplitSentences(text string) []string {
	matches := sentencePattern.FindAllString(text, -1)
	if matches == nil {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}

	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}
