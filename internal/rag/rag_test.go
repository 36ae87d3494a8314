package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-rag/internal/models"
	"persona-rag/internal/testutil"
)

type generateCall struct {
	systemPrompt string
	history      []models.ChatMessage
	input        string
}

type fakeGenerator struct {
	calls []generateCall
	reply string
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, systemPrompt string, history []models.ChatMessage, input string) (string, error) {
	f.calls = append(f.calls, generateCall{systemPrompt, history, input})
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeEmbedder struct {
	texts []string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return testutil.FakeEmbedding(text), nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeIndex struct {
	chunks []models.Chunk
	k      int
	err    error
}

func (f *fakeIndex) AddDocuments(_ context.Context, chunks []models.Chunk) (int, error) {
	f.chunks = append(f.chunks, chunks...)
	return len(chunks), nil
}

func (f *fakeIndex) SimilaritySearch(_ context.Context, _ []float32, k int) ([]models.Chunk, error) {
	f.k = k
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) < k {
		return f.chunks, nil
	}
	return f.chunks[:k], nil
}

func (f *fakeIndex) Count(context.Context) (int, error) { return len(f.chunks), nil }
func (f *fakeIndex) Close() error                      { return nil }

var history = []models.ChatMessage{
	{Role: models.RoleHuman, Content: "Tell me about your last project"},
	{Role: models.RoleAI, Content: "I built a chat bot."},
}

func TestReformulator_EmptyHistorySkipsModel(t *testing.T) {
	llm := &fakeGenerator{reply: "should not be used"}
	r := NewReformulator(llm)

	out, err := r.Reformulate(context.Background(), nil, "What languages do you use?")
	require.NoError(t, err)
	assert.Equal(t, "What languages do you use?", out)
	assert.Empty(t, llm.calls)
}

func TestReformulator_WithHistory(t *testing.T) {
	llm := &fakeGenerator{reply: "  What language was the chat bot written in?\n"}
	r := NewReformulator(llm)

	out, err := r.Reformulate(context.Background(), history, "What language was it in?")
	require.NoError(t, err)
	assert.Equal(t, "What language was the chat bot written in?", out)

	require.Len(t, llm.calls, 1)
	assert.Equal(t, models.ContextualizePrompt, llm.calls[0].systemPrompt)
	assert.Equal(t, history, llm.calls[0].history)
	assert.Equal(t, "What language was it in?", llm.calls[0].input)
}

func TestReformulator_Error(t *testing.T) {
	upstream := errors.New("429 rate limit")
	r := NewReformulator(&fakeGenerator{err: upstream})

	_, err := r.Reformulate(context.Background(), history, "q")
	assert.ErrorIs(t, err, upstream)
}

func TestRetriever_DefaultK(t *testing.T) {
	index := &fakeIndex{chunks: []models.Chunk{{Content: "a"}, {Content: "b"}, {Content: "c"}, {Content: "d"}}}
	embedder := &fakeEmbedder{}
	r := NewRetriever(embedder, index, 0)

	docs, err := r.Retrieve(context.Background(), "standalone")
	require.NoError(t, err)
	assert.Len(t, docs, 3)
	assert.Equal(t, 3, index.k)
	assert.Equal(t, []string{"standalone"}, embedder.texts)
}

func TestRetriever_EmbedError(t *testing.T) {
	upstream := errors.New("bad key")
	r := NewRetriever(&fakeEmbedder{err: upstream}, &fakeIndex{}, 3)

	_, err := r.Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, upstream)
}

func TestSynthesizer_SystemPrompt(t *testing.T) {
	s := NewSynthesizer(&fakeGenerator{}, "")
	prompt := s.SystemPrompt([]models.Chunk{{Content: "I am Alex."}, {Content: "I code in Python."}})

	assert.True(t, strings.HasPrefix(prompt, "You are the AI version of me, Alex Melia."))
	assert.True(t, strings.HasSuffix(prompt, "\n\nI am Alex.\n\nI code in Python."))
	assert.Contains(t, prompt, "respond in first person")
	assert.Contains(t, prompt, "DO NOT GIVE ANY ADVICE UNDER ANY CIRCUMSTANCES")
	assert.Contains(t, prompt, "just say that you don't know")
}

func TestSynthesizer_AnswerVerbatim(t *testing.T) {
	llm := &fakeGenerator{reply: "  I use Go and Python.  "}
	s := NewSynthesizer(llm, "Sam")

	out, err := s.Answer(context.Background(), []models.Chunk{{Content: "ctx"}}, history, "What languages?")
	require.NoError(t, err)
	assert.Equal(t, "  I use Go and Python.  ", out)

	require.Len(t, llm.calls, 1)
	assert.Contains(t, llm.calls[0].systemPrompt, "me, Sam.")
	assert.Equal(t, history, llm.calls[0].history)
	assert.Equal(t, "What languages?", llm.calls[0].input)
}

func TestRAG_Run(t *testing.T) {
	ctx := context.Background()
	reformLLM := &fakeGenerator{reply: "What language was the chat bot written in?"}
	answerLLM := &fakeGenerator{reply: "It was written in Go."}
	embedder := &fakeEmbedder{}
	index := &fakeIndex{chunks: []models.Chunk{{Content: "The chat bot is written in Go."}}}

	pipeline := NewRAG(NewReformulator(reformLLM), NewRetriever(embedder, index, 3), NewSynthesizer(answerLLM, ""))

	res, err := pipeline.Run(ctx, "What language was it in?", history)
	require.NoError(t, err)

	assert.Equal(t, "It was written in Go.", res.Answer)
	assert.Equal(t, "What language was the chat bot written in?", res.StandaloneQuestion)
	assert.Equal(t, []models.Chunk{{Content: "The chat bot is written in Go."}}, res.Chunks)

	// retrieval uses the standalone question, answering the original one
	assert.Equal(t, []string{"What language was the chat bot written in?"}, embedder.texts)
	require.Len(t, answerLLM.calls, 1)
	assert.Equal(t, "What language was it in?", answerLLM.calls[0].input)
	assert.Contains(t, answerLLM.calls[0].systemPrompt, "The chat bot is written in Go.")
}

func TestRAG_RunAbortsOnFirstError(t *testing.T) {
	upstream := errors.New("store unavailable")
	answerLLM := &fakeGenerator{reply: "unused"}
	pipeline := NewRAG(
		NewReformulator(&fakeGenerator{}),
		NewRetriever(&fakeEmbedder{}, &fakeIndex{err: upstream}, 3),
		NewSynthesizer(answerLLM, ""),
	)

	_, err := pipeline.Run(context.Background(), "q", nil)
	assert.ErrorIs(t, err, upstream)
	assert.Empty(t, answerLLM.calls)
}

func TestRAG_RunEmptyIndex(t *testing.T) {
	answerLLM := &fakeGenerator{reply: "I don't know."}
	pipeline := NewRAG(
		NewReformulator(&fakeGenerator{}),
		NewRetriever(&fakeEmbedder{}, &fakeIndex{}, 3),
		NewSynthesizer(answerLLM, ""),
	)

	res, err := pipeline.Run(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Chunks)
	assert.Equal(t, "I don't know.", res.Answer)
}
