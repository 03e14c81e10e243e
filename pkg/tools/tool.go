// Package tools indexes the capabilities the LLM may invoke and executes
// tool calls on its behalf. Execution never raises into the graph: every
// failure (bad arguments, timeout, tool error) comes back as a Tool message
// with an error payload.
package tools

import (
	"context"
	"encoding/json"

	"github.com/nsure-ai/inquest/pkg/models"
)

// Tool error kinds recorded on error payloads.
const (
	ErrKindInvalidArguments = "invalid_arguments"
	ErrKindTimeout          = "timeout"
	ErrKindExecution        = "execution"
)

// Result is the raw output of a tool invocation before payload parsing.
type Result struct {
	Data        []byte
	ContentType string
}

// JSONResult builds a Result from a JSON-marshallable value.
func JSONResult(v any) (*Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, ContentType: "application/json"}, nil
}

// Tool is one named capability. Implementations must respect ctx deadlines
// and cancellation.
type Tool interface {
	Definition() models.ToolDefinition
	Invoke(ctx context.Context, args json.RawMessage) (*Result, error)
}

// Func adapts a function into a Tool.
type Func struct {
	Def models.ToolDefinition
	Fn  func(ctx context.Context, args json.RawMessage) (*Result, error)
}

func (f *Func) Definition() models.ToolDefinition { return f.Def }

func (f *Func) Invoke(ctx context.Context, args json.RawMessage) (*Result, error) {
	return f.Fn(ctx, args)
}
