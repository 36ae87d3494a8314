package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"

	"persona-rag/internal/config"
	"persona-rag/internal/testutil"
)

type fakeClient struct {
	calls [][]string
	err   error
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = testutil.FakeEmbedding(t)
	}
	return out, nil
}

func newFakeGateway(t *testing.T, client *fakeClient) *Gateway {
	t.Helper()
	impl, err := embeddings.NewEmbedder(client)
	require.NoError(t, err)
	return NewGateway(impl)
}

func TestGateway_Embed(t *testing.T) {
	client := &fakeClient{}
	g := newFakeGateway(t, client)

	vec, err := g.Embed(context.Background(), "I code in Go")
	require.NoError(t, err)
	assert.Len(t, vec, testutil.Dimension)
	assert.Len(t, client.calls, 1)
}

func TestGateway_EmbedBatch(t *testing.T) {
	g := newFakeGateway(t, &fakeClient{})

	vecs, err := g.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, testutil.FakeEmbedding("two"), vecs[1])
}

func TestGateway_EmbedBatchEmpty(t *testing.T) {
	client := &fakeClient{}
	g := newFakeGateway(t, client)

	vecs, err := g.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Empty(t, client.calls, "no round trip for an empty batch")
}

func TestGateway_PropagatesError(t *testing.T) {
	upstream := errors.New("rate limit reached")
	g := newFakeGateway(t, &fakeClient{err: upstream})

	_, err := g.EmbedBatch(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, upstream)
}

func TestGateway_ChromemFunc(t *testing.T) {
	g := newFakeGateway(t, &fakeClient{})

	vec, err := g.ChromemFunc()(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, testutil.FakeEmbedding("hello"), vec)
}

func TestNewEmbedder_OpenAI(t *testing.T) {
	srv := testutil.NewOpenAIServer()
	defer srv.Close()

	g, err := NewEmbedder(&config.LLMConfig{
		Provider: config.ProviderOpenAI,
		BaseURL:  srv.URL,
		Key:      "sk-test",
		Model:    "text-embedding-3-small",
	})
	require.NoError(t, err)

	vecs, err := g.EmbedBatch(context.Background(), []string{"Hello world.", "I am Alex."})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []string{"Hello world.", "I am Alex."}, srv.EmbeddedTexts())
}

func TestNewEmbedder_UpstreamErrorText(t *testing.T) {
	srv := testutil.NewOpenAIServer()
	srv.Unauthorized = true
	defer srv.Close()

	g, err := NewEmbedder(&config.LLMConfig{
		Provider: config.ProviderOpenAI,
		BaseURL:  srv.URL,
		Key:      "sk-bad",
		Model:    "text-embedding-3-small",
	})
	require.NoError(t, err)

	_, err = g.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key provided")
}

func TestNewEmbedder_MissingKeyFailsOnFirstCall(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	g, err := NewEmbedder(&config.LLMConfig{Provider: config.ProviderOpenAI, Model: "text-embedding-3-small"})
	require.NoError(t, err, "construction must not fail")

	_, err = g.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(&config.LLMConfig{Provider: "bard", Model: "x"})
	assert.Error(t, err)
}
