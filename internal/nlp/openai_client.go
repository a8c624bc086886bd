package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/voicetrail/audio-gateway/internal/config"
)

const optimizeSystemPrompt = `You clean up raw speech-to-text transcripts. Fix punctuation,
remove filler words and repeated fragments, and join broken sentences, but never add
content that was not said. Reply with the cleaned text only.`

const extractSystemPrompt = `You extract actionable items from a voice transcript. Reply
with a single JSON object of the form
{"todos": [{"content": "...", "time": "", "note": ""}], "schedules": [{"content": "...", "time": "...", "note": ""}]}.
A todo is a task without a fixed time. A schedule is an appointment or event with a time.
If the transcript has neither, reply {"todos": [], "schedules": []}. Reply with JSON only.`

// OpenAIClient implements TextProcessor on top of an OpenAI-compatible chat API
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// NewOpenAIClient creates a text processor backed by the configured chat model
func NewOpenAIClient(cfg *config.Config, logger zerolog.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.OpenAIModel,
		logger: logger.With().Str("component", "nlp").Logger(),
	}
}

// OptimizeText rewrites a raw transcript into readable text.
// On failure the input is returned unchanged so callers can degrade gracefully.
func (c *OpenAIClient) OptimizeText(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	content, err := c.complete(ctx, optimizeSystemPrompt, text)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Text optimization failed, keeping original text")
		return text, fmt.Errorf("optimize text: %w", err)
	}

	optimized := strings.TrimSpace(stripCodeFence(content))
	if optimized == "" {
		return text, nil
	}
	return optimized, nil
}

// ExtractItems pulls todos and schedule entries out of a transcript.
// On failure an empty extraction is returned so callers can degrade gracefully.
func (c *OpenAIClient) ExtractItems(ctx context.Context, text string) (Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return Extraction{Todos: []Item{}, Schedules: []Item{}}, nil
	}

	content, err := c.complete(ctx, extractSystemPrompt, text)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Item extraction failed, returning empty extraction")
		return Extraction{Todos: []Item{}, Schedules: []Item{}}, fmt.Errorf("extract items: %w", err)
	}

	extraction, err := ParseExtraction(content)
	if err != nil {
		c.logger.Warn().Err(err).Str("response", content).Msg("Unparseable extraction response")
		return Extraction{Todos: []Item{}, Schedules: []Item{}}, fmt.Errorf("extract items: %w", err)
	}
	return extraction, nil
}

func (c *OpenAIClient) complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ParseExtraction parses a model response into an Extraction, tolerating
// markdown code fences around the JSON body
func ParseExtraction(raw string) (Extraction, error) {
	cleaned := strings.TrimSpace(stripCodeFence(raw))

	var extraction Extraction
	if err := json.Unmarshal([]byte(cleaned), &extraction); err != nil {
		return Extraction{}, fmt.Errorf("parse extraction JSON: %w", err)
	}

	if extraction.Todos == nil {
		extraction.Todos = []Item{}
	}
	if extraction.Schedules == nil {
		extraction.Schedules = []Item{}
	}
	return extraction, nil
}

// stripCodeFence removes a surrounding markdown code block if present
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return s
}

var _ TextProcessor = (*OpenAIClient)(nil)
