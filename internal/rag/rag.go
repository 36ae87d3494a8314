package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"persona-rag/internal/models"
)

// Reformulator rewrites a follow-up question so it stands on its own
type Reformulator interface {
	Reformulate(ctx context.Context, history []models.ChatMessage, question string) (string, error)
}

// Retriever fetches the chunks most relevant to a question
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]models.Chunk, error)
}

// Synthesizer answers the question from the retrieved chunks
type Synthesizer interface {
	Answer(ctx context.Context, docs []models.Chunk, history []models.ChatMessage, question string) (string, error)
}

// Generator is a single chat-model call
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, history []models.ChatMessage, input string) (string, error)
}

// RAG runs reformulate, retrieve, answer as one straight-line pipeline.
// It holds no per-request state and is shared by all handlers.
type RAG struct {
	reformulator Reformulator
	retriever    Retriever
	synthesizer  Synthesizer
}

func NewRAG(reformulator Reformulator, retriever Retriever, synthesizer Synthesizer) *RAG {
	return &RAG{reformulator: reformulator, retriever: retriever, synthesizer: synthesizer}
}

// Run answers query given the prior turns. Retrieval uses the reformulated
// question; the answer step sees the original one. The first failing stage
// aborts the run and its error is returned unchanged.
func (r *RAG) Run(ctx context.Context, query string, history []models.ChatMessage) (*models.RetrievalResult, error) {
	standalone, err := r.reformulator.Reformulate(ctx, history, query)
	if err != nil {
		return nil, err
	}

	docs, err := r.retriever.Retrieve(ctx, standalone)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("standalone_question", standalone).
		Int("retrieved", len(docs)).
		Msg("Retrieved context")

	answer, err := r.synthesizer.Answer(ctx, docs, history, query)
	if err != nil {
		return nil, err
	}

	return &models.RetrievalResult{
		Query:              query,
		StandaloneQuestion: standalone,
		Answer:             answer,
		Chunks:             docs,
	}, nil
}

// HistoryAwareReformulator asks the chat model for a standalone question
type HistoryAwareReformulator struct {
	llm    Generator
	prompt string
}

func NewReformulator(llm Generator) *HistoryAwareReformulator {
	return &HistoryAwareReformulator{llm: llm, prompt: models.ContextualizePrompt}
}

// Reformulate returns question untouched when there is no history; there is
// nothing to resolve it against, so the model is not called.
func (f *HistoryAwareReformulator) Reformulate(ctx context.Context, history []models.ChatMessage, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}
	out, err := f.llm.Generate(ctx, f.prompt, history, question)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// VectorRetriever embeds the question and queries the index for the top k chunks
type VectorRetriever struct {
	embedder models.Embedder
	index    models.VectorIndex
	k        int
}

func NewRetriever(embedder models.Embedder, index models.VectorIndex, k int) *VectorRetriever {
	if k <= 0 {
		k = models.DefaultTopK
	}
	return &VectorRetriever{embedder: embedder, index: index, k: k}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, question string) ([]models.Chunk, error) {
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	return r.index.SimilaritySearch(ctx, vec, r.k)
}

// PersonaSynthesizer stuffs every retrieved chunk into the persona system prompt
type PersonaSynthesizer struct {
	llm     Generator
	persona string
}

func NewSynthesizer(llm Generator, personaName string) *PersonaSynthesizer {
	if personaName == "" {
		personaName = models.DefaultPersonaName
	}
	return &PersonaSynthesizer{llm: llm, persona: personaName}
}

// Answer returns the model's reply verbatim
func (s *PersonaSynthesizer) Answer(ctx context.Context, docs []models.Chunk, history []models.ChatMessage, question string) (string, error) {
	return s.llm.Generate(ctx, s.SystemPrompt(docs), history, question)
}

// SystemPrompt is the persona instruction followed by the chunk texts separated by blank lines
func (s *PersonaSynthesizer) SystemPrompt(docs []models.Chunk) string {
	context := strings.Join(models.Texts(docs), models.ParagraphSeparator)
	return fmt.Sprintf(models.PersonaPromptTemplate, s.persona, context)
}
