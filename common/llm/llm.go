package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
)

var nameInvalidChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

const ProviderOpenAI = "openai"

// ReasoningEffort controls the amount of reasoning for supported models.
type ReasoningEffort string

const (
	ReasoningEffortLow    ReasoningEffort = "low"
	ReasoningEffortMedium ReasoningEffort = "medium"
	ReasoningEffortHigh   ReasoningEffort = "high"
)

// Config holds LLM client configuration.
type Config struct {
	Provider        string          // only "openai" is supported
	APIKey          string          // Required: API key for the provider
	BaseURL         string          // Optional: OpenAI-compatible endpoint
	Model           string          // Model name (e.g., "gpt-4o-mini")
	MaxTokens       int             // Default completion budget when a request sets none
	ReasoningEffort ReasoningEffort // Optional: for models that support reasoning
}

// Client runs a single structured completion and decodes the JSON answer into result.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Model() string
}

type Request struct {
	SystemPrompt string
	Messages     []Message // transcript turns, oldest first
	SchemaName   string
	Schema       any // nil sends a plain json_object response format
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

// Message is one user turn. Name carries the speaker label.
type Message struct {
	Name    string
	Content string
}

type Response struct {
	Raw              string
	PromptTokens     int
	CompletionTokens int
}

// New creates a Client for the configured provider.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}
	if provider != ProviderOpenAI {
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}

	return newOpenAIClient(cfg), nil
}

// GenerateSchema generates a JSON schema for T.
func GenerateSchema[T any]() any {
	var v T
	return GenerateSchemaFrom(v)
}

// GenerateSchemaFrom generates a JSON schema from an instance value.
func GenerateSchemaFrom(v any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// SanitizeName converts a speaker label to a valid OpenAI name parameter.
// The name must match ^[a-zA-Z0-9_-]{1,64}$.
// Invalid characters are replaced with underscores, and the result is truncated to 64 characters.
func SanitizeName(speaker string) string {
	sanitized := nameInvalidChars.ReplaceAllString(speaker, "_")
	if len(sanitized) > 64 {
		sanitized = sanitized[:64]
	}
	return sanitized
}

// StripCodeFence removes a surrounding ```json ... ``` fence some models add
// even when asked for bare JSON.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// Decode unmarshals a model answer into result after stripping any code fence.
func Decode(content string, result any) error {
	if err := json.Unmarshal([]byte(StripCodeFence(content)), result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func Temp(t float64) *float64 {
	return &t
}

// IsRetryable reports whether a failed call is worth another attempt on the next tick.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429:
			slog.WarnContext(ctx, "llm rate limited, will retry",
				"status_code", apiErr.StatusCode)
			return true
		case apiErr.StatusCode >= 500:
			slog.WarnContext(ctx, "llm server error, will retry",
				"status_code", apiErr.StatusCode)
			return true
		default:
			slog.ErrorContext(ctx, "llm client error, not retryable",
				"status_code", apiErr.StatusCode,
				"error_type", apiErr.Type,
				"error_code", apiErr.Code)
			return false
		}
	}

	// Network errors (no API response) are generally retryable
	slog.WarnContext(ctx, "llm network error, will retry", "error", err)
	return true
}
