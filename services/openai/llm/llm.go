// Package llm streams chat completions from OpenAI for the relay's turn
// generator.
package llm

import (
	"context"
	"errors"
	"fmt"

	"voicerelay/core"

	"github.com/sashabaranov/go-openai"
)

// Config holds the configuration for the OpenAI service.
type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

// DefaultConfig returns a Config tuned for short spoken responses.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		MaxTokens:   400,
		Temperature: 0.7,
	}
}

// Service is a thin streaming wrapper around the OpenAI chat API.
type Service struct {
	client *openai.Client
	config Config
}

// NewService creates the service. BaseURL overrides the API endpoint, useful
// for proxies and tests.
func NewService(config Config) (*Service, error) {
	if config.APIKey == "" {
		return nil, errors.New("llm: OpenAI API key is required")
	}
	defaults := DefaultConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = defaults.Temperature
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &Service{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Stream opens a token stream for the given ordered message list. The caller
// owns the returned stream and may abandon it mid-flight by closing it or
// cancelling ctx.
func (s *Service) Stream(ctx context.Context, messages []core.LLMMessage) (*TokenStream, error) {
	req := openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    convertMessages(messages),
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
		Stream:      true,
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm: create completion stream: %w", err)
	}
	return &TokenStream{inner: stream}, nil
}

// TokenStream yields completion tokens one at a time.
type TokenStream struct {
	inner *openai.ChatCompletionStream
}

// Recv returns the next non-empty content delta. io.EOF signals normal
// completion.
func (t *TokenStream) Recv() (string, error) {
	for {
		response, err := t.inner.Recv()
		if err != nil {
			return "", err
		}
		if len(response.Choices) > 0 && response.Choices[0].Delta.Content != "" {
			return response.Choices[0].Delta.Content, nil
		}
	}
}

// Close abandons the stream; the provider call may continue discarding
// output server-side.
func (t *TokenStream) Close() error {
	return t.inner.Close()
}

func convertMessages(messages []core.LLMMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    convertRole(msg.Role),
			Content: msg.Message,
		})
	}
	return out
}

func convertRole(role core.LLMMessageRole) string {
	switch role {
	case core.LLMMessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	case core.LLMMessageRoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
