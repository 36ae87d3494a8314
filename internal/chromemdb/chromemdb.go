package chromemdb

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"persona-rag/internal/helper"
	"persona-rag/internal/models"
)

// VectorDBManager is a models.VectorIndex backed by a chromem-go database
// persisted on local disk. chromem-go guards its own state, so one manager is
// shared by all request handlers without extra locking.
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   models.Embedder
	dbPath     string
	compress   bool
	dedupe     bool
}

type Options struct {
	Path       string
	Collection string
	Compress   bool
	// Dedupe derives document IDs from content and skips chunks already stored.
	Dedupe bool
}

// NewVectorDBManager opens (or creates) the persistent database and its collection
func NewVectorDBManager(opts Options, embedder models.Embedder) (*VectorDBManager, error) {
	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database folder: %w", err)
	}
	db, err := chromem.NewPersistentDB(opts.Path, opts.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	m := &VectorDBManager{
		db:       db,
		embedder: embedder,
		dbPath:   opts.Path,
		compress: opts.Compress,
		dedupe:   opts.Dedupe,
	}
	if _, err := m.GetOrCreateCollection(opts.Collection); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	var embedFunc chromem.EmbeddingFunc
	if f, ok := m.embedder.(interface{ ChromemFunc() chromem.EmbeddingFunc }); ok {
		embedFunc = f.ChromemFunc()
	} else {
		embedFunc = func(ctx context.Context, text string) ([]float32, error) {
			return m.embedder.Embed(ctx, text)
		}
	}
	c, err := m.db.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// AddDocuments embeds the chunks in one batch and appends them to the collection
func (m *VectorDBManager) AddDocuments(ctx context.Context, chunks []models.Chunk) (int, error) {
	pending := chunks
	if m.dedupe {
		pending = m.missing(ctx, chunks)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	vectors, err := m.embedder.EmbedBatch(ctx, models.Texts(pending))
	if err != nil {
		return 0, err
	}

	docs := make([]chromem.Document, len(pending))
	for i, chunk := range pending {
		id, err := m.documentID(chunk)
		if err != nil {
			return 0, err
		}
		docs[i] = chromem.Document{
			ID:        id,
			Content:   chunk.Content,
			Embedding: vectors[i],
		}
	}

	if err := m.CreateDocs(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// add multiple documents
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []chromem.Document) error {
	err := m.collection.AddDocuments(ctx, documents, runtime.NumCPU())
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

// SimilaritySearch returns up to k stored chunks by cosine similarity, most similar first
func (m *VectorDBManager) SimilaritySearch(ctx context.Context, query []float32, k int) ([]models.Chunk, error) {
	results, err := m.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       k,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, len(results))
	for i, r := range results {
		chunks[i] = models.Chunk{Content: r.Content}
	}
	return chunks, nil
}

// SearchWithQueryOptions runs a raw chromem query. NResults is clamped to the
// collection size since chromem rejects asking for more documents than it holds.
func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}

	count := m.collection.Count()
	if opts.NResults > count {
		opts.NResults = count
	}
	if opts.NResults <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

func (m *VectorDBManager) Count(context.Context) (int, error) {
	return m.collection.Count(), nil
}

// Close is a no-op: chromem writes each document through to disk as it is added
func (m *VectorDBManager) Close() error {
	return nil
}

// Export writes the collection to a snapshot file. A non-empty key encrypts it.
func (m *VectorDBManager) Export(filePath, encryptionKey string) error {
	log.Debug().
		Str("collection", m.collection.Name).
		Str("file", filePath).
		Bool("compress", m.compress).
		Bool("encrypted", encryptionKey != "").
		Msg("Exporting collection")

	err := m.db.ExportToFile(filePath, m.compress, encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import replaces the collection with a snapshot written by Export. The
// collection is dropped from disk first so entries missing from the snapshot
// do not come back on the next open.
func (m *VectorDBManager) Import(filePath, encryptionKey string) error {
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	name := m.collection.Name

	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	importErr := m.db.ImportFromFile(filePath, encryptionKey, name)

	// the import replaces the collection object held by the db
	if _, err := m.GetOrCreateCollection(name); err != nil {
		return err
	}
	if importErr != nil {
		return fmt.Errorf("failed to import database: %w", importErr)
	}
	return nil
}

func (m *VectorDBManager) documentID(chunk models.Chunk) (string, error) {
	if m.dedupe {
		return helper.ContentHash(chunk.Content), nil
	}
	return helper.GenerateUUID()
}

// missing filters out chunks whose content hash is already stored, and
// repeats within the batch itself
func (m *VectorDBManager) missing(ctx context.Context, chunks []models.Chunk) []models.Chunk {
	seen := make(map[string]bool, len(chunks))
	var out []models.Chunk
	for _, chunk := range chunks {
		id := helper.ContentHash(chunk.Content)
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := m.collection.GetByID(ctx, id); err == nil {
			continue
		}
		out = append(out, chunk)
	}
	return out
}
