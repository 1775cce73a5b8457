package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestOpenAICompatComplete(t *testing.T) {
	var got oaiChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"quote\":\"hi\"} "}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatClient(srv.URL+"/v1/", "sk-test", "gpt-default", time.Second)
	content, err := client.Complete(context.Background(), CompletionRequest{
		Messages:    []Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "quote"}},
		Temperature: 0.7,
		MaxTokens:   100,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != `{"quote":"hi"}` {
		t.Fatalf("content = %q", content)
	}
	if got.Model != "gpt-default" || got.MaxTokens != 100 || got.Temperature != 0.7 || len(got.Messages) != 2 {
		t.Fatalf("unexpected request body: %+v", got)
	}
}

func TestAzureComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/gpt-4o/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if v := r.URL.Query().Get("api-version"); v != defaultAzureAPIVersion {
			t.Errorf("unexpected api-version %q", v)
		}
		if key := r.Header.Get("api-key"); key != "azure-key" {
			t.Errorf("unexpected api-key %q", key)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	client := NewAzureOpenAIClient(srv.URL, "azure-key", "fallback", "", time.Second)
	if _, err := client.Complete(context.Background(), CompletionRequest{Model: "gpt-4o"}); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestUpstreamErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewOpenAICompatClient(srv.URL, "", "m", time.Second).Complete(context.Background(), CompletionRequest{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusUnauthorized || !strings.Contains(upstream.Body, "bad key") {
		t.Fatalf("unexpected upstream error: %+v", upstream)
	}
	if upstream.Retryable() {
		t.Fatalf("401 must not be retryable")
	}
}

func TestEmptyCompletion(t *testing.T) {
	for name, body := range map[string]string{
		"no choices":   `{"choices":[]}`,
		"null content": `{"choices":[{"message":{"content":null}}]}`,
		"blank":        `{"choices":[{"message":{"content":"  "}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()
			_, err := NewOpenAICompatClient(srv.URL, "", "m", time.Second).Complete(context.Background(), CompletionRequest{})
			if !errors.Is(err, ErrEmptyCompletion) {
				t.Fatalf("expected ErrEmptyCompletion, got %v", err)
			}
		})
	}
}

func TestOllamaComplete(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"comment\":\"ok\"}"},"done":true}`))
	}))
	defer srv.Close()

	content, err := NewOllamaClient(srv.URL, "llama3", time.Second).Complete(context.Background(), CompletionRequest{Temperature: 0.2, MaxTokens: 64})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != `{"comment":"ok"}` {
		t.Fatalf("content = %q", content)
	}
	if got.Stream || got.Format != "json" || got.Options.NumPredict != 64 || got.Model != "llama3" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

type scriptedClient struct {
	calls int32
	errs  []error
}

func (c *scriptedClient) Complete(context.Context, CompletionRequest) (string, error) {
	n := int(atomic.AddInt32(&c.calls, 1)) - 1
	if n < len(c.errs) && c.errs[n] != nil {
		return "", c.errs[n]
	}
	return "{}", nil
}

func TestWithRetryDisabledByDefault(t *testing.T) {
	inner := &scriptedClient{}
	if got := WithRetry(inner, RetryConfig{}); got != CompletionClient(inner) {
		t.Fatalf("expected unwrapped client when retries disabled")
	}
}

func TestWithRetryRetriesServerErrors(t *testing.T) {
	inner := &scriptedClient{errs: []error{
		&UpstreamError{StatusCode: 503, Status: "503 Service Unavailable"},
		&UpstreamError{StatusCode: 429, Status: "429 Too Many Requests"},
	}}
	client := WithRetry(inner, RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	if _, err := client.Complete(context.Background(), CompletionRequest{}); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inner.calls)
	}
}

func TestWithRetrySkipsClientErrors(t *testing.T) {
	inner := &scriptedClient{errs: []error{&UpstreamError{StatusCode: 400, Status: "400 Bad Request"}}}
	client := WithRetry(inner, RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond})
	_, err := client.Complete(context.Background(), CompletionRequest{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != 400 {
		t.Fatalf("expected the 400 upstream error, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", inner.calls)
	}
}

func TestNewCompletionClient(t *testing.T) {
	if _, err := NewCompletionClient(ProviderConfig{Provider: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	if _, err := NewCompletionClient(ProviderConfig{Provider: "azure", BaseURL: "https://x"}); err == nil {
		t.Fatalf("expected error for azure without key")
	}
	if c, err := NewCompletionClient(ProviderConfig{Provider: "ollama"}); err != nil || c == nil {
		t.Fatalf("ollama client: %v", err)
	}
}
