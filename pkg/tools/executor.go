package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nsure-ai/inquest/pkg/models"
)

// Executor runs the tool calls of one investigation. Calls within an AI turn
// execute concurrently but results are emitted as Tool messages in request
// order. Each call-id executes at most once for the lifetime of the executor;
// replays return the recorded message.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	done map[string]models.Message // call-id → emitted Tool message
}

// NewExecutor creates an executor over the registry with a per-tool timeout.
func NewExecutor(registry *Registry, perToolTimeout time.Duration) *Executor {
	return &Executor{
		registry: registry,
		timeout:  perToolTimeout,
		logger:   slog.With("component", "tool_executor"),
		done:     make(map[string]models.Message),
	}
}

// ExecuteCalls runs every call of an AI turn and returns one Tool message per
// call, in request order.
func (e *Executor) ExecuteCalls(ctx context.Context, calls []models.ToolCall) []models.Message {
	results := make([]models.Message, len(calls))

	// A call-id repeated within the turn executes once; later occurrences
	// reuse the first result.
	first := make(map[string]int, len(calls))
	dups := make(map[int]int)

	var wg sync.WaitGroup
	for i, call := range calls {
		if j, seen := first[call.ID]; seen {
			dups[i] = j
			continue
		}
		first[call.ID] = i

		if msg, replay := e.recorded(call.ID); replay {
			results[i] = msg
			continue
		}
		wg.Add(1)
		go func(i int, call models.ToolCall) {
			defer wg.Done()
			results[i] = e.executeOne(ctx, call)
		}(i, call)
	}
	wg.Wait()

	for i, j := range dups {
		results[i] = results[j]
	}

	e.mu.Lock()
	for i, call := range calls {
		if _, exists := e.done[call.ID]; !exists {
			e.done[call.ID] = results[i]
		}
	}
	e.mu.Unlock()

	return results
}

func (e *Executor) recorded(callID string) (models.Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg, ok := e.done[callID]
	return msg, ok
}

func (e *Executor) executeOne(ctx context.Context, call models.ToolCall) models.Message {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return models.ToolMessage(call.ID, call.Name,
			models.ErrorPayload(ErrKindExecution, fmt.Sprintf("unknown tool: %s", call.Name)))
	}

	if err := e.registry.ValidateArgs(call.Name, call.Arguments); err != nil {
		e.logger.Warn("Tool call rejected by schema",
			"tool", call.Name, "call_id", call.ID, "error", err)
		return models.ToolMessage(call.ID, call.Name,
			models.ErrorPayload(ErrKindInvalidArguments, err.Error()))
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := tool.Invoke(callCtx, call.Arguments)
	elapsed := time.Since(start)

	switch {
	case callCtx.Err() == context.DeadlineExceeded:
		e.logger.Warn("Tool call timed out",
			"tool", call.Name, "call_id", call.ID, "elapsed", elapsed)
		return models.ToolMessage(call.ID, call.Name,
			models.ErrorPayload(ErrKindTimeout, fmt.Sprintf("tool %s exceeded %s", call.Name, e.timeout)))
	case err != nil:
		e.logger.Warn("Tool call failed",
			"tool", call.Name, "call_id", call.ID, "error", err)
		return models.ToolMessage(call.ID, call.Name,
			models.ErrorPayload(ErrKindExecution, err.Error()))
	}

	e.logger.Debug("Tool call completed",
		"tool", call.Name, "call_id", call.ID, "elapsed", elapsed)
	return models.ToolMessage(call.ID, call.Name, parsePayload(result))
}

// parsePayload parses JSON results into structured values; everything else is
// stored raw with its content type.
func parsePayload(result *Result) *models.ToolPayload {
	if result == nil {
		return models.ParsedPayload(nil)
	}
	trimmed := strings.TrimSpace(string(result.Data))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed any
		if err := json.Unmarshal(result.Data, &parsed); err == nil {
			return models.ParsedPayload(parsed)
		}
	}
	return models.RawPayload(result.Data, result.ContentType)
}
