package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAzureAPIVersion = "2024-02-15-preview"

// OpenAICompatClient calls any OpenAI-compatible /chat/completions endpoint
// (OpenAI, vLLM, LiteLLM, LocalAI, OpenRouter, ...).
type OpenAICompatClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatClient builds a client. baseURL should include the /v1 prefix,
// e.g. "https://api.openai.com/v1". apiKey may be empty for local models.
func NewOpenAICompatClient(baseURL, apiKey, model string, timeout time.Duration) *OpenAICompatClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAICompatClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *OpenAICompatClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := firstNonEmpty(req.Model, c.model)
	if model == "" {
		return "", fmt.Errorf("openai-compat completion model required")
	}
	var resp oaiChatResponse
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	if err := postJSON(ctx, c.httpClient, "openai-compat", c.baseURL+"/chat/completions", headers, newChatRequest(req, model), &resp); err != nil {
		return "", err
	}
	return resp.firstContent()
}

// AzureOpenAIClient calls an Azure OpenAI deployment. The request model selects
// the deployment name; deployment is the fallback.
type AzureOpenAIClient struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
}

func NewAzureOpenAIClient(endpoint, apiKey, deployment, apiVersion string, timeout time.Duration) *AzureOpenAIClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if strings.TrimSpace(apiVersion) == "" {
		apiVersion = defaultAzureAPIVersion
	}
	return &AzureOpenAIClient{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		deployment: strings.TrimSpace(deployment),
		apiVersion: strings.TrimSpace(apiVersion),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *AzureOpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	deployment := firstNonEmpty(req.Model, c.deployment)
	if deployment == "" {
		return "", fmt.Errorf("azure openai deployment required")
	}
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, url.PathEscape(deployment), url.QueryEscape(c.apiVersion))
	var resp oaiChatResponse
	headers := map[string]string{"api-key": c.apiKey}
	if err := postJSON(ctx, c.httpClient, "azure openai", endpoint, headers, newChatRequest(req, deployment), &resp); err != nil {
		return "", err
	}
	return resp.firstContent()
}

func newChatRequest(req CompletionRequest, model string) oaiChatRequest {
	return oaiChatRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// OpenAI-compatible request/response types.

type oaiChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r oaiChatResponse) firstContent() (string, error) {
	if len(r.Choices) == 0 || r.Choices[0].Message.Content == nil {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(*r.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
