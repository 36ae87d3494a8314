package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"persona-rag/internal/models"
)

// PromptRequest is the body of POST /
type PromptRequest struct {
	Prompt      *string     `json:"prompt" validate:"required"`
	ChatHistory ChatHistory `json:"chat_history"`
}

type PromptResponse struct {
	Message string `json:"Message"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ChatHistory accepts each turn either as a bare string, taken as a human
// turn, or as a {"role", "content"} object.
type ChatHistory []models.ChatMessage

func (h *ChatHistory) UnmarshalJSON(data []byte) error {
	// an omitted field is empty history, an explicit null is not
	if strings.TrimSpace(string(data)) == "null" {
		return errors.New("chat_history must be a list, got null")
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("chat_history must be a list: %w", err)
	}

	out := make(ChatHistory, 0, len(raw))
	for i, item := range raw {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			out = append(out, models.ChatMessage{Role: models.RoleHuman, Content: text})
			continue
		}

		var msg struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		}
		if err := json.Unmarshal(item, &msg); err != nil {
			return fmt.Errorf("chat_history[%d] must be a string or an object: %w", i, err)
		}
		if msg.Content == nil {
			return fmt.Errorf("chat_history[%d].content is required", i)
		}
		role, err := parseRole(msg.Role)
		if err != nil {
			return fmt.Errorf("chat_history[%d]: %w", i, err)
		}
		out = append(out, models.ChatMessage{Role: role, Content: *msg.Content})
	}
	*h = out
	return nil
}

func parseRole(role string) (models.Role, error) {
	switch strings.ToLower(role) {
	case "", "human", "user":
		return models.RoleHuman, nil
	case "ai", "assistant":
		return models.RoleAI, nil
	case "system":
		return models.RoleSystem, nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"Hello": "World"})
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	log.Info().Str("prompt", *req.Prompt).Int("history", len(req.ChatHistory)).Msg("Prompt received")

	result, err := s.pipeline.Run(ctx, *req.Prompt, req.ChatHistory)
	if err != nil {
		// the raw error text goes back to the caller unchanged
		log.Error().Err(err).Msg("Pipeline failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PromptResponse{Message: result.Answer})
}

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		w.Header().Set("Allow", "GET, HEAD, POST")
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	writeError(w, http.StatusNotFound, "Not Found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
