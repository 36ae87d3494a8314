package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-rag/internal/config"
	"persona-rag/internal/models"
	"persona-rag/internal/testutil"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return testutil.FakeEmbedding(text), nil
}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = testutil.FakeEmbedding(t)
	}
	return out, nil
}

// newTestStore connects to the database named by PERSONA_RAG_PG_TEST_DSN,
// which must have the pgvector extension available.
func newTestStore(t *testing.T, dedupe bool) *Store {
	t.Helper()
	dsn := os.Getenv("PERSONA_RAG_PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PERSONA_RAG_PG_TEST_DSN not set")
	}
	ctx := context.Background()
	cfg := &config.PostgresConfig{DSN: dsn, Dimension: testutil.Dimension}

	s, err := NewStore(ctx, cfg, dedupe, fakeEmbedder{})
	require.NoError(t, err)
	require.NoError(t, DropDocuments(ctx, s.db))
	require.NoError(t, InitDB(ctx, s.db, cfg.Dimension))
	t.Cleanup(func() {
		DropDocuments(context.Background(), s.db)
		s.Close()
	})
	return s
}

var corpus = []models.Chunk{
	{Content: "I write backend services in Go."},
	{Content: "My favourite editor is Neovim."},
	{Content: "On weekends I go climbing."},
	{Content: "I studied computer science in Dublin."},
}

func TestStore_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	added, err := s.AddDocuments(ctx, corpus)
	require.NoError(t, err)
	assert.Equal(t, len(corpus), added)

	results, err := s.SimilaritySearch(ctx, testutil.FakeEmbedding("On weekends I go climbing."), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "On weekends I go climbing.", results[0].Content)
}

func TestStore_FewerThanK(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	_, err := s.AddDocuments(ctx, corpus[:1])
	require.NoError(t, err)

	results, err := s.SimilaritySearch(ctx, testutil.FakeEmbedding("go"), 3)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStore_DuplicatesWithoutDedupe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, false)

	_, err := s.AddDocuments(ctx, corpus)
	require.NoError(t, err)
	_, err = s.AddDocuments(ctx, corpus)
	require.NoError(t, err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2*len(corpus), count)
}

func TestStore_Dedupe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, true)

	_, err := s.AddDocuments(ctx, corpus)
	require.NoError(t, err)
	added, err := s.AddDocuments(ctx, corpus)
	require.NoError(t, err)
	assert.Zero(t, added)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(corpus), count)
}
