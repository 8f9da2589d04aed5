// Package gemini talks to Google's Gemini models for the two jobs the bot
// cannot do locally: picking a category for an unfamiliar description and
// reading receipt photos.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// DefaultModelName is the model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("gemini: empty response from model")

// Generator is the subset of genai.Models the client uses.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client sends prompts to one Gemini model.
type Client struct {
	gen   Generator
	model string
	log   zerolog.Logger
}

// NewClient creates a Client backed by the Gemini API. An empty apiKey uses
// the environment (GOOGLE_API_KEY or Vertex AI application credentials).
func NewClient(ctx context.Context, model, apiKey string, log zerolog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewClient: create genai client: %w", err)
	}
	return New(client.Models, model, log), nil
}

// New creates a Client over an existing generator.
func New(gen Generator, model string, log zerolog.Logger) *Client {
	if model == "" {
		model = DefaultModelName
	}
	return &Client{
		gen:   gen,
		model: model,
		log:   log.With().Str("component", "gemini").Str("model", model).Logger(),
	}
}

// generate sends parts as one user turn and returns the response text.
func (c *Client) generate(ctx context.Context, op string, config *genai.GenerateContentConfig, parts ...*genai.Part) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: parts,
		},
	}

	resp, err := c.gen.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("%s: generate content: %w", op, err)
	}

	rawText := strings.TrimSpace(resp.Text())
	if rawText == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}

	c.log.Debug().Str("op", op).Int("response_len", len(rawText)).Msg("Model responded")
	return rawText, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// ```json ... ``` or ``` ... ```
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
