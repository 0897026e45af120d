package explain

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"
)

// Default models per provider.
const (
	DEFAULT_GEMINI_MODEL = "gemini-1.5-flash"
	DEFAULT_OPENAI_MODEL = "gpt-4o-mini"
	DEFAULT_CLAUDE_MODEL = "claude-3-5-haiku-20241022"
)

// GenerationParams are the sampling settings shared by every provider.
type GenerationParams struct {
	Temperature float32
	MaxTokens   int
}

// GeminiGenerator calls Google Gemini.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	params GenerationParams
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string, params GenerationParams) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DEFAULT_GEMINI_MODEL
	}
	return &GeminiGenerator{client: client, model: model, params: params}, nil
}

func (g *GeminiGenerator) Name() string {
	return "gemini/" + g.model
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.params.Temperature)
	model.SetMaxOutputTokens(int32(g.params.MaxTokens))
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		if txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
			return string(txt), nil
		}
	}
	return "", ErrEmptyResponse
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// OpenAIGenerator calls the OpenAI chat completion API or a compatible server.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	params GenerationParams
}

func NewOpenAIGenerator(apiKey, model, baseURL string, params GenerationParams) *OpenAIGenerator {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = DEFAULT_OPENAI_MODEL
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(config), model: model, params: params}
}

func (g *OpenAIGenerator) Name() string {
	return "openai/" + g.model
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.params.Temperature,
		MaxTokens:   g.params.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, nil
	}
	return "", ErrEmptyResponse
}

// ClaudeGenerator calls the Anthropic messages API.
type ClaudeGenerator struct {
	client *anthropic.Client
	model  string
	params GenerationParams
}

func NewClaudeGenerator(apiKey, model, baseURL string, params GenerationParams) *ClaudeGenerator {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DEFAULT_CLAUDE_MODEL
	}
	return &ClaudeGenerator{client: anthropic.NewClient(apiKey, opts...), model: model, params: params}
}

func (g *ClaudeGenerator) Name() string {
	return "claude/" + g.model
}

func (g *ClaudeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(g.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
		MaxTokens: g.params.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Content) > 0 && resp.Content[0].Text != nil {
		return *resp.Content[0].Text, nil
	}
	return "", ErrEmptyResponse
}
