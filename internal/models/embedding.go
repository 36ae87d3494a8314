package models

// Chunk is one blank-line separated paragraph of the corpus
type Chunk struct {
	Content string `json:"content"`
}

// Role of a chat turn. Values follow langchaingo's message types.
type Role string

const (
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

// ChatMessage is a single turn of client-supplied history
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RetrievalResult is the outcome of one pipeline run
type RetrievalResult struct {
	Query              string  `json:"query"`
	StandaloneQuestion string  `json:"standalone_question"`
	Answer             string  `json:"answer"`
	Chunks             []Chunk `json:"chunks"`
}

// Texts returns the chunk contents in order
func Texts(chunks []Chunk) []string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	return texts
}
