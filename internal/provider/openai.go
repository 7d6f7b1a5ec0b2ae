package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIGenerator calls the chat completions endpoint over plain HTTP.
type OpenAIGenerator struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	client      *http.Client
}

// OpenAIOption configures an OpenAIGenerator.
type OpenAIOption func(*OpenAIGenerator)

// WithBaseURL points the generator at a different API root.
func WithBaseURL(u string) OpenAIOption {
	return func(g *OpenAIGenerator) { g.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(g *OpenAIGenerator) { g.client = c }
}

// NewOpenAI creates an OpenAI-backed Generator.
func NewOpenAI(apiKey, model string, opts ...OpenAIOption) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewOpenAI: %w", ErrNoCredential)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	g := &OpenAIGenerator{
		apiKey:      apiKey,
		model:       model,
		baseURL:     DefaultOpenAIBaseURL,
		temperature: 0.2,
		client:      http.DefaultClient,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt as a chat completion and returns the first
// choice's content. JSON mode is requested for object-shaped prompts.
func (g *OpenAIGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	body := chatRequest{
		Model:       g.model,
		Temperature: g.temperature,
	}
	if p.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: p.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: p.Text})
	if p.Format == FormatObject {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("OpenAIGenerator.Generate: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("OpenAIGenerator.Generate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAIGenerator.Generate: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{Provider: OpenAI, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("OpenAIGenerator.Generate: decode response: %w", err)
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("OpenAIGenerator.Generate: %w", ErrEmptyResponse)
	}
	return decoded.Choices[0].Message.Content, nil
}
