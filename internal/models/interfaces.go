package models

import "context"

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores (vector, text) pairs and answers nearest-neighbour queries.
// Entries are only ever appended.
type VectorIndex interface {
	// AddDocuments embeds the chunks and appends them, returning how many were written.
	AddDocuments(ctx context.Context, chunks []Chunk) (int, error)

	// SimilaritySearch returns at most k stored chunks, most similar first.
	SimilaritySearch(ctx context.Context, query []float32, k int) ([]Chunk, error)

	Count(ctx context.Context) (int, error)
	Close() error
}
