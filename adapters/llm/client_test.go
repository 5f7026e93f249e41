package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabchat/ports"
)

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	client, err := NewClient(Config{APIKey: "sk-test", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestCleanJSONContent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading chatter", "Here is the result:\n{\"a\": 1}", `{"a": 1}`},
		{"array chatter", "Sure!\n[1, 2]", `[1, 2]`},
		{"whitespace", "  {\"a\": 1}  ", `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONContent(tt.input))
		})
	}
}

func TestChatJSONRoundTrip(t *testing.T) {
	var captured struct {
		Model          string `json:"model"`
		Messages       []ports.ChatMessage `json:"messages"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"content": "` + "```json\\n{\\\"message\\\": \\\"hi\\\"}\\n```" + `"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	content, err := client.ChatJSON(context.Background(), "You are an assistant.",
		[]ports.ChatMessage{{Role: "user", Content: "hello"}})
	require.NoError(t, err)

	assert.Equal(t, `{"message": "hi"}`, content)
	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	// The system prompt gets a JSON directive appended when it lacks one
	require.NotEmpty(t, captured.Messages)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "JSON")
}

func TestChatJSONServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "sk-test", BaseURL: server.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = client.ChatJSON(context.Background(), "system", nil)
	assert.Error(t, err)
}
