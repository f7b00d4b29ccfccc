package http

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/apierr"
	"github.com/fyrsmithlabs/askd/internal/ask"
	"github.com/fyrsmithlabs/askd/internal/speech"
)

// askRequest is the body of POST /ask and POST /ask/text.
type askRequest struct {
	ProductCode string `json:"productCode"`
	Question    string `json:"question"`
	Voice       string `json:"voice,omitempty"`
}

// responseMetadata is the side channel for audio answers, carried
// base64-encoded in the X-Response-Metadata header so the body can stay
// pure MP3.
type responseMetadata struct {
	ResponseText string   `json:"responseText"`
	CustomerID   string   `json:"customerId"`
	ProductCode  string   `json:"productCode"`
	Sentences    []string `json:"sentences"`
}

// handleAsk answers a question as streamed MP3 audio.
func (s *Server) handleAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return apierr.Validation("invalid request body")
	}

	result, err := s.ask.Audio(c.Request().Context(), ask.Query{
		CustomerID:  customerID(c),
		ProductCode: req.ProductCode,
		Question:    req.Question,
	}, speech.Options{Voice: req.Voice})
	if err != nil {
		AnswersTotal.WithLabelValues("audio", "error").Inc()
		return err
	}
	defer result.Audio.Close()
	AnswersTotal.WithLabelValues("audio", "success").Inc()

	metadata, err := json.Marshal(responseMetadata{
		ResponseText: result.Text,
		CustomerID:   result.CustomerID,
		ProductCode:  result.ProductCode,
		Sentences:    result.Sentences,
	})
	if err != nil {
		return apierr.Internal(err, "encoding response metadata failed")
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "audio/mpeg")
	header.Set(headerMetadata, base64.StdEncoding.EncodeToString(metadata))
	c.Response().WriteHeader(http.StatusOK)

	if _, err := io.Copy(c.Response(), result.Audio); err != nil {
		// Headers are out; all we can do is log the broken stream.
		s.logger.Warn(c.Request().Context(), "audio stream interrupted", zap.Error(err))
	}
	return nil
}

// handleAskText answers a question as JSON.
func (s *Server) handleAskText(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return apierr.Validation("invalid request body")
	}

	answer, err := s.ask.Text(c.Request().Context(), ask.Query{
		CustomerID:  customerID(c),
		ProductCode: req.ProductCode,
		Question:    req.Question,
	})
	if err != nil {
		AnswersTotal.WithLabelValues("text", "error").Inc()
		return err
	}
	AnswersTotal.WithLabelValues("text", "success").Inc()

	return respond(c, http.StatusOK, "", answer)
}

// handleVoices lists the voices the speech provider offers.
func (s *Server) handleVoices(c echo.Context) error {
	if s.synth == nil {
		return apierr.Internal(nil, "speech synthesis is not configured")
	}
	voices, err := s.synth.Voices(c.Request().Context())
	if err != nil {
		return apierr.Upstream(err, "listing voices failed")
	}
	return respondList(c, voices, len(voices))
}
