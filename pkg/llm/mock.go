package llm

import (
	"context"
	"sync"

	"github.com/nsure-ai/inquest/pkg/models"
)

// ScriptStep produces one scripted response. The function receives the
// conversation so steps can branch on what the orchestrator sent.
type ScriptStep func(messages []models.Message) (models.Message, error)

// ScriptedClient is a deterministic Client for tests and dry runs. It plays
// back a fixed script; once the script is exhausted it repeats the final step.
type ScriptedClient struct {
	mu    sync.Mutex
	steps []ScriptStep
	next  int
	calls int
}

// NewScriptedClient builds a client that replays the given steps in order.
func NewScriptedClient(steps ...ScriptStep) *ScriptedClient {
	return &ScriptedClient{steps: steps}
}

// Respond is a ScriptStep returning a fixed message.
func Respond(msg models.Message) ScriptStep {
	return func([]models.Message) (models.Message, error) { return msg, nil }
}

// Fail is a ScriptStep returning a fixed error.
func Fail(err error) ScriptStep {
	return func([]models.Message) (models.Message, error) { return models.Message{}, err }
}

func (c *ScriptedClient) Invoke(ctx context.Context, messages []models.Message, _ []models.ToolDefinition, _ Options) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}

	c.mu.Lock()
	c.calls++
	if len(c.steps) == 0 {
		c.mu.Unlock()
		return models.AIMessage("ok"), nil
	}
	step := c.steps[c.next]
	if c.next < len(c.steps)-1 {
		c.next++
	}
	c.mu.Unlock()

	return step(messages)
}

// Calls returns how many times Invoke was called.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *ScriptedClient) Close() error { return nil }
