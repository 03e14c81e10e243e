// Package llm defines the provider-agnostic LLM client used by the
// orchestrator and its Anthropic-backed implementation. The orchestrator is
// oblivious to whether the client is real, mocked or deterministic.
package llm

import (
	"context"
	"time"

	"github.com/nsure-ai/inquest/pkg/models"
)

// Options tunes a single Invoke call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client is the single operation the engine needs from an LLM provider.
// The returned message is an AI message carrying textual content, a non-empty
// set of tool-call requests, or both.
type Client interface {
	Invoke(ctx context.Context, messages []models.Message, tools []models.ToolDefinition, opts Options) (models.Message, error)

	// Close releases provider resources. No-op for stateless providers.
	Close() error
}
