package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nsure-ai/inquest/pkg/models"
)

// MaxTransientRetries is the retry budget for transient LLM failures.
// Fatal kinds (context length, model not found, rate limit) never retry.
const MaxTransientRetries = 2

// RetryingClient wraps a Client with jittered exponential backoff on
// transient failures. Classified fatal errors pass through immediately.
type RetryingClient struct {
	inner       Client
	maxRetries  uint64
	initialWait time.Duration
}

// NewRetryingClient wraps inner with the default retry policy.
func NewRetryingClient(inner Client) *RetryingClient {
	return &RetryingClient{
		inner:       inner,
		maxRetries:  MaxTransientRetries,
		initialWait: 500 * time.Millisecond,
	}
}

func (c *RetryingClient) Invoke(ctx context.Context, messages []models.Message, tools []models.ToolDefinition, opts Options) (models.Message, error) {
	var result models.Message
	attempt := 0

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialWait

	operation := func() error {
		attempt++
		msg, err := c.inner.Invoke(ctx, messages, tools, opts)
		if err != nil {
			classified := Classify(err)
			if classified.Kind.Fatal() {
				return backoff.Permanent(classified)
			}
			slog.Warn("Transient LLM failure, will retry",
				"attempt", attempt, "kind", classified.Kind, "error", err)
			return classified
		}
		result = msg
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
	if err != nil {
		return models.Message{}, Classify(err)
	}
	return result, nil
}

func (c *RetryingClient) Close() error { return c.inner.Close() }
