package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"persona-rag/internal/config"
	"persona-rag/internal/models"
)

var ErrEmptyResponse = errors.New("chat model returned no choices")

// ChatModel sends a whole conversation to a hosted chat model and returns its reply text.
type ChatModel struct {
	llm         llms.Model
	temperature float64
}

func NewChatModelFromLLM(llm llms.Model, temperature float64) *ChatModel {
	return &ChatModel{llm: llm, temperature: temperature}
}

// NewChatModel builds the client for the configured provider. As with the
// embedder, a missing API key only surfaces once the model is called.
func NewChatModel(llmConfig *config.LLMConfig) (*ChatModel, error) {
	log.Debug().Interface("llmConfig", map[string]string{
		"provider": llmConfig.Provider,
		"base_url": llmConfig.BaseURL,
		"model":    llmConfig.Model,
	}).Msg("Creating chat model")

	var llm llms.Model
	switch llmConfig.Provider {
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(llmConfig.Model)}
		if llmConfig.Key != "" {
			opts = append(opts, openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")))
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		client, err := openai.New(opts...)
		if err != nil {
			log.Warn().Err(err).Msg("Chat model unavailable, every completion will fail")
			llm = unavailable{err: err}
		} else {
			llm = client
		}
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama chat model: %w", err)
		}
		llm = client
	default:
		return nil, fmt.Errorf("unsupported chat provider %q", llmConfig.Provider)
	}
	return NewChatModelFromLLM(llm, llmConfig.Temperature), nil
}

// Generate calls the model once with a system prompt, the history, and the
// latest human turn. The provider's error is returned unchanged.
func (c *ChatModel) Generate(ctx context.Context, systemPrompt string, history []models.ChatMessage, input string) (string, error) {
	messages := BuildMessages(systemPrompt, history, input)

	var opts []llms.CallOption
	if c.temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.temperature))
	}
	res, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Content, nil
}

// BuildMessages lays out system prompt, history turns in order, then the input as a human turn
func BuildMessages(systemPrompt string, history []models.ChatMessage, input string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	for _, m := range history {
		messages = append(messages, llms.TextParts(messageType(m.Role), m.Content))
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, input))
}

func messageType(role models.Role) llms.ChatMessageType {
	switch role {
	case models.RoleAI:
		return llms.ChatMessageTypeAI
	case models.RoleSystem:
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}

// unavailable stands in for a client that could not be constructed
type unavailable struct {
	err error
}

func (u unavailable) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, u.err
}

func (u unavailable) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", u.err
}
