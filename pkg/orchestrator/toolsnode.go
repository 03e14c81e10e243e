package orchestrator

import (
	"context"
	"log/slog"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
	"github.com/nsure-ai/inquest/pkg/tools"
)

// ToolsNode resolves the tool calls of the latest AI message. Calls run
// concurrently; Tool messages are appended in request order.
type ToolsNode struct {
	executor *tools.Executor
	logger   *slog.Logger
}

// NewToolsNode wraps a tool executor as a graph node.
func NewToolsNode(executor *tools.Executor) *ToolsNode {
	return &ToolsNode{
		executor: executor,
		logger:   slog.With("component", "tools_node"),
	}
}

func (n *ToolsNode) ID() string { return graph.NodeTools }

// Run executes every pending call of the last AI message. Tool failures are
// data (error payloads), never node errors.
func (n *ToolsNode) Run(ctx context.Context, st graph.State, _ graph.Decision) (graph.Update, error) {
	last := st.LastMessage()
	if last == nil || !last.HasToolCalls() {
		n.logger.Warn("Tools node invoked without pending calls")
		return graph.Update{}, nil
	}

	results := n.executor.ExecuteCalls(ctx, last.ToolCalls)

	update := graph.Update{
		Messages:    results,
		ToolResults: make(map[string]*models.ToolPayload, len(results)),
		// One attempt per resolved AI turn, regardless of call count.
		ToolExecutionAttempts: 1,
	}
	for _, msg := range results {
		// Failed calls stay visible as Tool messages only: tools_used tracks
		// tools that actually produced a result, and tool_results holds the
		// latest successful payload.
		if msg.Payload.IsError() {
			continue
		}
		update.ToolsUsed = append(update.ToolsUsed, msg.ToolName)
		update.ToolResults[msg.ToolName] = msg.Payload
	}
	return update, nil
}
