package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrEmptyCompletion is returned when the service answers without any completion content.
var ErrEmptyCompletion = errors.New("no content returned from completion service")

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a provider-neutral chat completion request.
// An empty Model means the client's configured default.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// CompletionClient returns the content of the first completion.
// OpenAI-compatible, Azure OpenAI and Ollama providers implement it.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// UpstreamError is a non-success response from the completion service.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Status     string
	Body       string
}

func (e *UpstreamError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s api error: %s", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s api error: %s - %s", e.Provider, e.Status, body)
}

// Retryable reports whether the status is worth another attempt.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

const maxErrorBody = 4 << 10

// postJSON sends payload and decodes a 2xx response into out.
// Non-2xx responses become *UpstreamError with a truncated body.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UpstreamError{Provider: provider, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", provider, err)
	}
	return nil
}
