package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"persona-rag/internal/chromemdb"
	"persona-rag/internal/config"
	"persona-rag/internal/db"
	"persona-rag/internal/embedding"
	"persona-rag/internal/llmservice"
	"persona-rag/internal/models"
	"persona-rag/internal/parser"
	"persona-rag/internal/rag"
)

// App holds the process-wide components shared by every request
type App struct {
	Config *config.Config

	Embedder  *embedding.Gateway
	ChatModel *llmservice.ChatModel
	Index     models.VectorIndex
	Pipeline  *rag.RAG

	// Chromem is set when the chromem backend is selected; snapshots need it
	Chromem *chromemdb.VectorDBManager
}

// New builds the clients, opens the vector index and assembles the pipeline.
// Nothing is indexed yet, see IndexCorpus.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{Config: cfg}

	gw, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	a.Embedder = gw

	chat, err := llmservice.NewChatModel(&cfg.ChatLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	a.ChatModel = chat

	if err := a.initIndex(ctx); err != nil {
		return nil, err
	}

	a.Pipeline = rag.NewRAG(
		rag.NewReformulator(chat),
		rag.NewRetriever(gw, a.Index, cfg.RAG.TopK),
		rag.NewSynthesizer(chat, cfg.RAG.PersonaName),
	)

	log.Info().
		Str("store", cfg.VectorStore.Type).
		Str("embed_model", cfg.EmbedLLM.Model).
		Str("chat_model", cfg.ChatLLM.Model).
		Msg("Application initialized")
	return a, nil
}

func (a *App) initIndex(ctx context.Context) error {
	vs := a.Config.VectorStore
	switch vs.Type {
	case config.StoreChromem:
		m, err := chromemdb.NewVectorDBManager(chromemdb.Options{
			Path:       vs.Chromem.Path,
			Collection: vs.Chromem.Collection,
			Compress:   vs.Chromem.Compress,
			Dedupe:     a.Config.RAG.Dedupe,
		}, a.Embedder)
		if err != nil {
			return fmt.Errorf("failed to open chromem index: %w", err)
		}
		a.Chromem = m
		a.Index = m
	case config.StorePgvector:
		s, err := db.NewStore(ctx, &vs.Postgres, a.Config.RAG.Dedupe, a.Embedder)
		if err != nil {
			return fmt.Errorf("failed to open pgvector index: %w", err)
		}
		a.Index = s
	default:
		return fmt.Errorf("unsupported vector store %q", vs.Type)
	}
	return nil
}

// IndexCorpus loads every paragraph of the corpus directory and adds it to
// the index. It returns the number of entries written.
func (a *App) IndexCorpus(ctx context.Context) (int, error) {
	chunks, err := parser.LoadCorpus(a.Config.Corpus.Dir)
	if err != nil {
		return 0, fmt.Errorf("failed to load corpus: %w", err)
	}
	log.Info().Str("dir", a.Config.Corpus.Dir).Int("chunks", len(chunks)).Msg("Corpus loaded")

	added, err := a.Index.AddDocuments(ctx, chunks)
	if err != nil {
		return added, fmt.Errorf("failed to index corpus: %w", err)
	}

	total, err := a.Index.Count(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count index entries")
	}
	log.Info().Int("added", added).Int("total", total).Msg("Corpus indexed")
	return added, nil
}

// EnsureIndexed indexes the corpus only when the index is empty
func (a *App) EnsureIndexed(ctx context.Context) error {
	n, err := a.Index.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Debug().Int("total", n).Msg("Index already populated")
		return nil
	}
	_, err = a.IndexCorpus(ctx)
	return err
}

func (a *App) Close() error {
	if a.Index == nil {
		return nil
	}
	if err := a.Index.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	return nil
}
