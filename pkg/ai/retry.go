package ai

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// RetryConfig bounds retries of a completion call. MaxRetries <= 0 disables retries.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

type retryingClient struct {
	next     CompletionClient
	executor failsafe.Executor[string]
}

// WithRetry wraps client with a bounded exponential-backoff retry on transport
// failures and 429/5xx upstream responses. Empty and malformed completions are not retried.
func WithRetry(client CompletionClient, cfg RetryConfig) CompletionClient {
	if client == nil || cfg.MaxRetries <= 0 {
		return client
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay * 8
	}
	policy := retrypolicy.NewBuilder[string]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ string, err error) bool { return isRetryable(err) }).
		ReturnLastFailure().
		Build()
	return &retryingClient{next: client, executor: failsafe.With(policy)}
}

func (c *retryingClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return c.executor.WithContext(ctx).Get(func() (string, error) {
		return c.next.Complete(ctx, req)
	})
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyCompletion) || errors.Is(err, context.Canceled) {
		return false
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Retryable()
	}
	return true
}
