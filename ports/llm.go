package ports

import "context"

// ChatMessage is one turn of an LLM conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient is the contract with the external language-understanding
// collaborator. Implementations must respond within a bounded timeout; the
// caller treats any error as an unrecognized intent, never as a crash.
type LLMClient interface {
	// ChatJSON sends the system prompt plus conversation and returns the raw
	// JSON content of the model's reply.
	ChatJSON(ctx context.Context, system string, messages []ChatMessage) (string, error)
}
