// Package testutil provides an in-process stand-in for the OpenAI HTTP API.
package testutil

import (
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Dimension of the vectors produced by FakeEmbedding
const Dimension = 64

const InvalidKeyMessage = "Incorrect API key provided: sk-bad. You can find your API key at https://platform.openai.com/account/api-keys."

type ChatMessage struct {
	Role    string
	Content string
}

// UnmarshalJSON accepts content either as a string or as a list of text parts.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	if len(raw.Content) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw.Content, &m.Content); err == nil {
		return nil
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw.Content, &parts); err != nil {
		return err
	}
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	m.Content = sb.String()
	return nil
}

type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// OpenAIServer answers /embeddings and /chat/completions like the hosted API.
type OpenAIServer struct {
	*httptest.Server

	// Reply produces the assistant text for a chat request.
	Reply func(req ChatRequest) string
	// Unauthorized makes every call fail with a 401.
	Unauthorized bool

	mu            sync.Mutex
	chatRequests  []ChatRequest
	embedRequests [][]string
}

func NewOpenAIServer() *OpenAIServer {
	s := &OpenAIServer{
		Reply: func(ChatRequest) string { return "mocked answer" },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", s.handleEmbeddings)
	mux.HandleFunc("/chat/completions", s.handleChat)
	s.Server = httptest.NewServer(mux)
	return s
}

// ChatRequests returns the chat requests received so far
func (s *OpenAIServer) ChatRequests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.chatRequests...)
}

// EmbeddedTexts returns every text sent for embedding, in arrival order
func (s *OpenAIServer) EmbeddedTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, batch := range s.embedRequests {
		out = append(out, batch...)
	}
	return out
}

func (s *OpenAIServer) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	if s.Unauthorized {
		writeUnauthorized(w)
		return
	}
	var req struct {
		Model string          `json:"model"`
		Input json.RawMessage `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var inputs []string
	if err := json.Unmarshal(req.Input, &inputs); err != nil {
		var single string
		if err := json.Unmarshal(req.Input, &single); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		inputs = []string{single}
	}
	s.mu.Lock()
	s.embedRequests = append(s.embedRequests, inputs)
	s.mu.Unlock()

	data := make([]map[string]any, len(inputs))
	for i, text := range inputs {
		data[i] = map[string]any{
			"object":    "embedding",
			"index":     i,
			"embedding": FakeEmbedding(text),
		}
	}
	writeJSON(w, map[string]any{
		"object": "list",
		"data":   data,
		"model":  req.Model,
		"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
	})
}

func (s *OpenAIServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.Unauthorized {
		writeUnauthorized(w)
		return
	}
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.chatRequests = append(s.chatRequests, req)
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": s.Reply(req)},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	})
}

// FakeEmbedding hashes the words of text into a small bag-of-words vector.
// Texts sharing words end up close under cosine similarity. The last
// component is constant so no vector is all zeros.
func FakeEmbedding(text string) []float32 {
	vec := make([]float32, Dimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%(Dimension-1)]++
	}
	vec[Dimension-1] = 0.5
	return vec
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": InvalidKeyMessage,
			"type":    "invalid_request_error",
			"code":    "invalid_api_key",
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
