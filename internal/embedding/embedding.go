package embedding

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"persona-rag/internal/config"
)

// Gateway turns text into vectors through a hosted embedding model.
// Nothing is cached and nothing is retried: each call is one round trip and
// the provider's error is returned as is.
type Gateway struct {
	embedder embeddings.Embedder
}

func NewGateway(embedder embeddings.Embedder) *Gateway {
	return &Gateway{embedder: embedder}
}

// NewEmbedder builds the Gateway for the configured provider. A missing API
// key is not fatal here; the returned Gateway fails on its first call instead.
func NewEmbedder(cfg *config.LLMConfig) (*Gateway, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if cfg.Key != "" {
			opts = append(opts, openai.WithToken(cfg.Key))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			log.Warn().Err(err).Msg("Embedding model unavailable, every embedding call will fail")
			return NewGateway(unavailable{err: err}), nil
		}
		client = llm
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return NewGateway(embedder), nil
}

// Embed returns the vector for a single text
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	return g.embedder.EmbedQuery(ctx, text)
}

// EmbedBatch returns one vector per text, in input order
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := g.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// ChromemFunc exposes Embed as a chromem-go embedding function
func (g *Gateway) ChromemFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return g.Embed(ctx, text)
	}
}

// unavailable stands in for a client that could not be constructed
type unavailable struct {
	err error
}

func (u unavailable) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, u.err
}

func (u unavailable) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, u.err
}
