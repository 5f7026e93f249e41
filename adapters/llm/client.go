package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"tabchat/ports"
)

// Config holds everything needed to talk to the OpenAI chat completions API
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewClient creates an LLM client from config
func NewClient(config Config) (ports.LLMClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}

	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}

	return &OpenAIClient{
		APIKey:      config.APIKey,
		BaseURL:     baseURL,
		Model:       config.Model,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
		Timeout:     config.Timeout,
	}, nil
}

// OpenAIClient implements ports.LLMClient against the chat completions API
type OpenAIClient struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// responseFormat forces structured output from GPT models
type responseFormat struct {
	Type string `json:"type"` // "json_object" for structured output
}

// ChatJSON sends the conversation and returns the cleaned JSON content of
// the model reply.
func (c *OpenAIClient) ChatJSON(ctx context.Context, system string, messages []ports.ChatMessage) (string, error) {
	if strings.TrimSpace(c.Model) == "" {
		return "", fmt.Errorf("missing model")
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type reqBody struct {
		Model               string          `json:"model"`
		Messages            []msg           `json:"messages"`
		Temperature         float64         `json:"temperature,omitempty"`
		MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
		ResponseFormat      *responseFormat `json:"response_format,omitempty"`
	}

	// JSON mode requires the word "JSON" somewhere in the prompt
	if !strings.Contains(strings.ToLower(system), "json") {
		system += "\n\nIMPORTANT: Respond with valid JSON output."
	}

	all := make([]msg, 0, len(messages)+1)
	all = append(all, msg{Role: "system", Content: system})
	for _, m := range messages {
		all = append(all, msg{Role: m.Role, Content: m.Content})
	}

	body := reqBody{
		Model:               c.Model,
		Messages:            all,
		Temperature:         c.Temperature,
		MaxCompletionTokens: c.MaxTokens,
		ResponseFormat:      &responseFormat{Type: "json_object"},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	log.Printf("[LLMClient] Sending request to %s - messages=%d", c.Model, len(all))

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	httpClient := &http.Client{Timeout: c.Timeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("request timeout after %v: %w", c.Timeout, err)
		}
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenAI API error (status %d): %s", resp.StatusCode, string(raw))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	type openAIResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse OpenAI response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no choices in OpenAI response")
	}

	content := CleanJSONContent(parsed.Choices[0].Message.Content)
	log.Printf("[LLMClient] Received %d bytes of JSON content", len(content))
	return content, nil
}

// CleanJSONContent removes markdown code fences and leading chatter that
// some models emit around JSON payloads.
func CleanJSONContent(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") && strings.HasSuffix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	} else if strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	// Trim a single line of chatter before the JSON object/array
	if !strings.HasPrefix(content, "{") && strings.Contains(content, "\n{") {
		parts := strings.SplitN(content, "\n{", 2)
		if !strings.Contains(parts[0], "{") && !strings.Contains(parts[0], "[") {
			content = "{" + parts[1]
		}
	} else if !strings.HasPrefix(content, "[") && strings.Contains(content, "\n[") {
		parts := strings.SplitN(content, "\n[", 2)
		if !strings.Contains(parts[0], "{") && !strings.Contains(parts[0], "[") {
			content = "[" + parts[1]
		}
	}

	return strings.TrimSpace(content)
}
