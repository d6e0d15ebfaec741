package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

type openaiClient struct {
	client          openai.Client
	model           string
	maxTokens       int
	reasoningEffort ReasoningEffort
}

func newOpenAIClient(cfg Config) *openaiClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &openaiClient{
		client:          openai.NewClient(opts...),
		model:           model,
		maxTokens:       maxTokens,
		reasoningEffort: cfg.ReasoningEffort,
	}
}

func (c *openaiClient) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            convertMessages(req),
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		ResponseFormat:      responseFormat(req),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if c.reasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(c.reasoningEffort)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	slog.DebugContext(ctx, "llm chat completed",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason)

	content := resp.Choices[0].Message.Content
	if result != nil {
		if err := Decode(content, result); err != nil {
			return nil, err
		}
	}

	return &Response{
		Raw:              content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

func (c *openaiClient) Model() string {
	return c.model
}

func responseFormat(req Request) openai.ChatCompletionNewParamsResponseFormatUnion {
	if req.Schema == nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	name := req.SchemaName
	if name == "" {
		name = "response"
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        name,
				Description: openai.String("Structured response schema"),
				Schema:      req.Schema,
				Strict:      openai.Bool(true),
			},
		},
	}
}

func convertMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		result = append(result, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.Messages {
		name := SanitizeName(msg.Name)
		if name == "" {
			result = append(result, openai.UserMessage(msg.Content))
			continue
		}
		result = append(result, openai.ChatCompletionMessageParamUnion{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Name: openai.String(name),
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				},
			},
		})
	}

	return result
}
