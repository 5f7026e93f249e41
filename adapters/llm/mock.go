package llm

import (
	"context"

	"tabchat/ports"
)

// MockClient is a canned LLM client for testing
type MockClient struct {
	Response string // Set this for testing
	Error    error  // Set this to simulate errors

	// Calls records every request for assertions
	Calls []MockCall
}

// MockCall captures one ChatJSON invocation
type MockCall struct {
	System   string
	Messages []ports.ChatMessage
}

func (m *MockClient) ChatJSON(ctx context.Context, system string, messages []ports.ChatMessage) (string, error) {
	m.Calls = append(m.Calls, MockCall{System: system, Messages: messages})
	if m.Error != nil {
		return "", m.Error
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return `{"message": "I can help with that.", "intent": null}`, nil
}
