// Package openai implements the extraction collaborator on an
// OpenAI-compatible chat completions API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dialhaven/recall/pkg/extract"
	"github.com/dialhaven/recall/pkg/thread"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	// systemPrompt instructs the model to emit strict JSON. Types outside
	// the closed set are coerced downstream, so the contract here is
	// shape, not vocabulary.
	systemPrompt = `You distill facts from a phone conversation transcript between a caller and an AI agent.
Respond with JSON only, no prose, matching exactly:
{"facts":[{"type":"person|preference|commitment|fact|rule|moment","key":"snake_case_key","value":"...","scope":"caller|tenant"}],"summary":"one or two sentences recapping the transcript"}
Extract only durable facts worth remembering across calls (names, contact details, stated preferences, promises made, notable events). Omit small talk. Use scope "caller" unless a fact clearly applies to the business itself.`
)

// Extractor implements extract.Extractor against a chat completions API.
type Extractor struct {
	client openai.Client
	model  string
}

// Config holds settings for the OpenAI extractor.
type Config struct {
	// APIKey authenticates against the API. Falls back to the
	// OPENAI_API_KEY environment variable when empty (SDK behavior).
	APIKey string

	// BaseURL overrides the API endpoint, enabling Azure or local
	// OpenAI-compatible servers.
	BaseURL string

	// Model is the chat model to use. Defaults to DefaultModel.
	Model string
}

// NewExtractor creates an extractor backed by the configured API.
func NewExtractor(cfg Config) *Extractor {
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Extractor{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Extract submits the transcript and parses the JSON response. A malformed
// response is an error. The consolidation engine retries with backoff, so
// one flaky completion does not lose the slice.
func (e *Extractor) Extract(ctx context.Context, turns []thread.Turn) (*extract.Extraction, error) {
	if len(turns) == 0 {
		return nil, extract.ErrNoTurns
	}

	completion, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(transcript(turns)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	extraction, err := parseResponse(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return extraction, nil
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (e *Extractor) Close() error {
	return nil
}

// transcript renders turns as role-prefixed lines.
func transcript(turns []thread.Turn) string {
	var b strings.Builder

	for _, turn := range turns {
		b.WriteString(string(turn.Role))
		b.WriteString(": ")
		b.WriteString(turn.Text)
		b.WriteString("\n")
	}

	return b.String()
}

// parseResponse decodes the model's JSON, tolerating markdown code fences
// some models insist on wrapping JSON in.
func parseResponse(content string) (*extract.Extraction, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var extraction extract.Extraction
	if err := json.Unmarshal([]byte(content), &extraction); err != nil {
		return nil, fmt.Errorf("malformed extraction response: %w", err)
	}

	return &extraction, nil
}

var _ extract.Extractor = (*Extractor)(nil)
