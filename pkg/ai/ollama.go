package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

// OllamaClient calls the Ollama /api/chat endpoint in JSON mode.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaClient constructs a client with the provided base URL and default model.
func NewOllamaClient(baseURL, model string, timeout time.Duration) *OllamaClient {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := firstNonEmpty(req.Model, c.model)
	if model == "" {
		return "", fmt.Errorf("ollama model required")
	}
	body := ollamaChatRequest{
		Model:    model,
		Messages: req.Messages,
		Stream:   false,
		Format:   "json",
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	var resp ollamaChatResponse
	if err := postJSON(ctx, c.httpClient, "ollama", c.baseURL+"/api/chat", nil, body, &resp); err != nil {
		return "", err
	}
	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
}
