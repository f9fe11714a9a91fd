package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"quill/internal/models"
)

// EmitFunc receives each generated piece of text.
type EmitFunc func(chunk string) error

// Generator produces story text for a request, piece by piece.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest, emit EmitFunc) error
}

const writerSystemPrompt = "You are a creative story writer."

// BuildPrompt turns the form options into the instruction sent to the model.
func BuildPrompt(req models.GenerationRequest) string {
	length := models.DefaultOptions.LengthByKey(req.Length)
	return fmt.Sprintf(`You are a creative story writer. Write an engaging %s story with a %s tone.

Guidelines:
- Write the story in %s
- Target length: %d-%d words
- Create vivid characters and settings
- Include a clear beginning, middle, and end
- Make the story engaging and memorable
- Match the tone consistently throughout

User's story idea: %s

Write the story now:`, strings.ToLower(req.Genre), strings.ToLower(req.Tone), req.Language, length.Min, length.Max, req.Prompt)
}

// OpenAIGenerator streams from any OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func NewOpenAIGenerator(apiKey, baseURL, model string, maxTokens int64, opts ...option.RequestOption) *OpenAIGenerator {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	return &OpenAIGenerator{
		client:    openai.NewClient(reqOpts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req models.GenerationRequest, emit EmitFunc) error {
	stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(writerSystemPrompt),
			openai.UserMessage(BuildPrompt(req)),
		},
		Temperature: openai.Float(0.8),
		MaxTokens:   openai.Int(g.maxTokens),
	})
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			if err := emit(content); err != nil {
				return err
			}
		}
	}
	return stream.Err()
}

// ScriptedGenerator writes a short deterministic story without any model.
// It keeps the dev server usable offline.
type ScriptedGenerator struct {
	Delay time.Duration
}

func (g ScriptedGenerator) Generate(ctx context.Context, req models.GenerationRequest, emit EmitFunc) error {
	text := fmt.Sprintf("# The %s Tale\n\nIn a %s mood, %s. ", req.Genre, strings.ToLower(req.Tone), req.Prompt) +
		"The journey was long, and every step carried a new surprise. " +
		"At last the ending arrived, quiet and certain."
	words := strings.SplitAfter(text, " ")
	for _, w := range words {
		if g.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.Delay):
			}
		}
		if err := emit(w); err != nil {
			return err
		}
	}
	return nil
}
