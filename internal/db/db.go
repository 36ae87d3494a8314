package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"persona-rag/internal/config"
	"persona-rag/internal/helper"
	"persona-rag/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Content       string          `bun:"content,notnull"`
	ContentHash   string          `bun:"content_hash,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull"`
}

// Store is a models.VectorIndex backed by PostgreSQL with the pgvector extension
type Store struct {
	db        *bun.DB
	embedder  models.Embedder
	dimension int
	dedupe    bool
}

func ConnectDB(cfg *config.PostgresConfig) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// NewStore connects and makes sure the extension and table exist
func NewStore(ctx context.Context, cfg *config.PostgresConfig, dedupe bool, embedder models.Embedder) (*Store, error) {
	db := NewDB(ConnectDB(cfg), cfg.Debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{db: db, embedder: embedder, dimension: cfg.Dimension, dedupe: dedupe}
	if err := InitDB(ctx, db, cfg.Dimension); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func InitDB(ctx context.Context, db *bun.DB, vectorSize int) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	// the vector width is only known at runtime, so the table is not derived from the model tags
	_, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
	id bigserial PRIMARY KEY,
	content text NOT NULL,
	content_hash text NOT NULL,
	embedding vector(%d) NOT NULL
)`, vectorSize))
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS documents_content_hash_idx ON documents (content_hash)"); err != nil {
		return fmt.Errorf("create content hash index: %w", err)
	}
	return nil
}

func (s *Store) AddDocuments(ctx context.Context, chunks []models.Chunk) (int, error) {
	pending := chunks
	if s.dedupe {
		var err error
		if pending, err = s.missing(ctx, chunks); err != nil {
			return 0, err
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.EmbedBatch(ctx, models.Texts(pending))
	if err != nil {
		return 0, err
	}

	docs := make([]Document, len(pending))
	for i, chunk := range pending {
		docs[i] = Document{
			Content:     chunk.Content,
			ContentHash: helper.ContentHash(chunk.Content),
			Embedding:   pgvector.NewVector(vectors[i]),
		}
	}
	if err := StoreDocuments(ctx, s.db, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func StoreDocuments(ctx context.Context, db *bun.DB, docs []Document) error {
	if _, err := db.NewInsert().Model(&docs).Exec(ctx); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	return nil
}

// SimilaritySearch orders by cosine distance, closest first
func (s *Store) SimilaritySearch(ctx context.Context, query []float32, k int) ([]models.Chunk, error) {
	docs, err := SearchDocuments(ctx, s.db, query, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, len(docs))
	for i, d := range docs {
		chunks[i] = models.Chunk{Content: d.Content}
	}
	return chunks, nil
}

func SearchDocuments(ctx context.Context, db *bun.DB, queryEmbedding []float32, limit int) ([]Document, error) {
	var docs []Document
	err := db.NewSelect().
		Model(&docs).
		Column("id", "content").
		OrderExpr("embedding <=> ?", pgvector.NewVector(queryEmbedding)).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// drop table documents
func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

func (s *Store) missing(ctx context.Context, chunks []models.Chunk) ([]models.Chunk, error) {
	hashes := make([]string, 0, len(chunks))
	for _, c := range chunks {
		hashes = append(hashes, helper.ContentHash(c.Content))
	}

	var existing []string
	if len(hashes) > 0 {
		err := s.db.NewSelect().
			Model((*Document)(nil)).
			Column("content_hash").
			Where("content_hash IN (?)", bun.In(hashes)).
			Scan(ctx, &existing)
		if err != nil {
			return nil, fmt.Errorf("lookup existing documents: %w", err)
		}
	}

	seen := make(map[string]bool, len(existing)+len(chunks))
	for _, h := range existing {
		seen[h] = true
	}
	var out []models.Chunk
	for i, c := range chunks {
		if seen[hashes[i]] {
			continue
		}
		seen[hashes[i]] = true
		out = append(out, c)
	}
	return out, nil
}
