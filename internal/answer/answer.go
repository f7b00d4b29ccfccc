// Package answer turns retrieved product records into a customer-facing
// answer via a chat completion model.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/fyrsmithlabs/askd/internal/apierr"
	"github.com/fyrsmithlabs/askd/internal/docstore"
)

// noRecordsMarker is handed to the model when retrieval came back empty,
// so it can tell the customer nothing was found instead of inventing
// product details.
const noRecordsMarker = "No product information found."

// Config controls completion behavior.
type Config struct {
	// MaxTokens bounds the completion length. Answers are meant to be
	// short enough to speak aloud.
	MaxTokens int

	// Temperature is the sampling temperature.
	Temperature float64

	// Suffix is the closing line the model is instructed to append.
	Suffix string
}

// Generator produces answers from records.
type Generator struct {
	model llms.Model
	cfg   Config
}

// New creates a Generator on top of a chat model.
func New(model llms.Model, cfg Config) (*Generator, error) {
	if model == nil {
		return nil, fmt.Errorf("model is required")
	}
	return &Generator{model: model, cfg: cfg}, nil
}

// Generate answers the question from the records. Records are serialized
// verbatim for the model; an empty set yields an honest "not found"
// style answer rather than a hallucinated one.
func (g *Generator) Generate(ctx context.Context, question string, records []docstore.Record) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, g.systemPrompt(records)),
		llms.TextParts(schema.ChatMessageTypeHuman, question),
	}

	resp, err := g.model.GenerateContent(ctx, content,
		llms.WithMaxTokens(g.cfg.MaxTokens),
		llms.WithTemperature(g.cfg.Temperature),
	)
	if err != nil {
		return "", apierr.Upstream(err, "answer generation failed")
	}
	if len(resp.Choices) == 0 {
		return "", apierr.Upstream(nil, "answer generation returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func (g *Generator) systemPrompt(records []docstore.Record) string {
	var b strings.Builder
	b.WriteString("You are a product advisor. Answer customer questions using the product information below.\n")
	b.WriteString("Keep responses concise, clear, and direct. Focus only on the specific question asked. Do not say product code in the response.\n")
	if g.cfg.Suffix != "" {
		fmt.Fprintf(&b, "Add %q at the end.\n", g.cfg.Suffix)
	}
	b.WriteString("\nProduct Information:\n")
	b.WriteString(serializeRecords(records))
	return b.String()
}

// serializeRecords renders records as a numbered list of pretty-printed
// JSON objects. The tenant's attributes pass through untouched.
func serializeRecords(records []docstore.Record) string {
	if len(records) == 0 {
		return noRecordsMarker
	}

	parts := make([]string, 0, len(records))
	for i, rec := range records {
		doc := make(map[string]any, len(rec.Attributes)+2)
		for key, val := range rec.Attributes {
			doc[key] = val
		}
		if rec.Content != "" {
			doc["content"] = rec.Content
		}
		if rec.ProductCode != "" {
			doc["product_code"] = rec.ProductCode
		}

		raw, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			raw = []byte(fmt.Sprintf("%v", doc))
		}
		parts = append(parts, fmt.Sprintf("%d. %s", i+1, raw))
	}
	return strings.Join(parts, "\n\n")
}
