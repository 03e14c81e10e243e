package orchestrator

import (
	"context"
	"log/slog"

	"github.com/nsure-ai/inquest/pkg/config"
	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/llm"
	"github.com/nsure-ai/inquest/pkg/models"
	"github.com/nsure-ai/inquest/pkg/tools"
)

// Orchestrator is the phase-driving node. It is the only node that requests
// tool calls; domain agents and the summary node never do.
type Orchestrator struct {
	client        llm.Client
	registry      *tools.Registry
	limits        config.Limits
	model         string
	maxTokens     int
	warehouseTool string
	logger        *slog.Logger
}

// New builds the orchestrator node.
func New(client llm.Client, registry *tools.Registry, limits config.Limits, model string, maxTokens int, warehouseTool string) *Orchestrator {
	return &Orchestrator{
		client:        client,
		registry:      registry,
		limits:        limits,
		model:         model,
		maxTokens:     maxTokens,
		warehouseTool: warehouseTool,
		logger:        slog.With("component", "orchestrator"),
	}
}

func (o *Orchestrator) ID() string { return graph.NodeOrchestrator }

// Run executes one orchestrator turn for the current phase.
func (o *Orchestrator) Run(ctx context.Context, st graph.State, dec graph.Decision) (graph.Update, error) {
	switch st.CurrentPhase {
	case graph.PhaseInitialization:
		return o.runInitialization(st), nil
	case graph.PhaseSnowflake:
		return o.runSnowflake(ctx, st, dec)
	case graph.PhaseToolExecution:
		return o.runToolExecution(ctx, st, dec)
	case graph.PhaseDomainAnalysis:
		return o.runDomainAnalysis(st, dec), nil
	default:
		// summary and complete are routed to other nodes; reaching here means
		// a router bug, surface it as an empty turn.
		o.logger.Warn("Orchestrator invoked in unexpected phase", "phase", st.CurrentPhase)
		return graph.Update{}, nil
	}
}

// runInitialization emits the opening system notice and enters warehouse
// analysis. No LLM call is needed to start.
func (o *Orchestrator) runInitialization(st graph.State) graph.Update {
	notice := models.SystemMessage(
		"Investigation started: " + st.EntityType + "=" + st.EntityID)
	return graph.Update{
		Phase:    graph.Ptr(graph.PhaseSnowflake),
		Messages: []models.Message{notice},
	}
}

// runSnowflake either consumes an observed warehouse result (completing the
// phase) or asks the LLM to issue the warehouse tool call.
func (o *Orchestrator) runSnowflake(ctx context.Context, st graph.State, dec graph.Decision) (graph.Update, error) {
	if st.WarehouseToolObserved(o.warehouseTool) {
		rows := warehouseRows(st, o.warehouseTool)
		o.logger.Info("Warehouse analysis completed", "rows", len(rows))
		return graph.Update{
			Phase:              graph.Ptr(graph.PhaseToolExecution),
			SnowflakeData:      rows,
			SnowflakeCompleted: graph.Ptr(true),
		}, nil
	}

	// Ceiling exhausted without warehouse data: the mandatory phase failed,
	// escalate to a partial summary.
	if dec.ForceAdvance {
		o.logger.Error("Warehouse analysis exhausted without data", "reason", dec.Reason)
		return graph.Update{
			Phase:         graph.Ptr(graph.PhaseSummary),
			SkippedPhases: graph.PhasesBetween(st.CurrentPhase, graph.PhaseSummary),
			Errors: []models.InvestigationError{{
				Kind:    models.ErrWarehouseQuery,
				Message: "warehouse analysis ceiling exhausted without a query result",
				Phase:   string(st.CurrentPhase),
				Fatal:   true,
			}},
		}, nil
	}
	return o.invokeLLM(ctx, st, o.registry.Definitions())
}

// runToolExecution accumulates tool calls until a progression trigger fires,
// then advances to domain analysis.
func (o *Orchestrator) runToolExecution(ctx context.Context, st graph.State, dec graph.Decision) (graph.Update, error) {
	if dec.ForceAdvance {
		// Domain analysis requires at least one attempt on record; a phase
		// that never executed tools degrades straight to summary.
		if st.ToolExecutionAttempts < 1 {
			o.logger.Warn("Tool execution ended without attempts, skipping to summary")
			return graph.Update{
				Phase:         graph.Ptr(graph.PhaseSummary),
				SkippedPhases: graph.PhasesBetween(st.CurrentPhase, graph.PhaseSummary),
			}, nil
		}
		o.logger.Info("Tool execution complete", "tools", len(st.ToolsUsed), "reason", dec.Reason)
		return graph.Update{Phase: graph.Ptr(graph.PhaseDomainAnalysis)}, nil
	}
	return o.invokeLLM(ctx, st, o.registry.Definitions())
}

// runDomainAnalysis never calls the LLM: the router drives domain agents
// directly. The orchestrator advances to summary once all required domains
// are done, or emits guidance otherwise.
func (o *Orchestrator) runDomainAnalysis(st graph.State, dec graph.Decision) graph.Update {
	if dec.ForceAdvance {
		return graph.Update{Phase: graph.Ptr(graph.PhaseSummary)}
	}
	guidance := models.SystemMessage(
		"Domain analysis in progress. Remaining domains run sequentially: " +
			joinRemaining(st))
	return graph.Update{Messages: []models.Message{guidance}}
}

func joinRemaining(st graph.State) string {
	remaining := remainingDomains(st)
	if len(remaining) == 0 {
		return "none"
	}
	out := remaining[0]
	for _, d := range remaining[1:] {
		out += ", " + d
	}
	return out
}

// invokeLLM performs one classified LLM call and returns the AI message as an
// update. Fatal failures short-circuit the investigation toward summary with
// the partial-verdict scores.
func (o *Orchestrator) invokeLLM(ctx context.Context, st graph.State, defs []models.ToolDefinition) (graph.Update, error) {
	prompt := systemPrompt(st, o.warehouseTool)
	messages := make([]models.Message, 0, len(st.Messages)+2)
	messages = append(messages, models.SystemMessage(prompt))
	if priority := userPrioritySection(st, o.limits.MaxCustomPromptLen); priority != "" {
		messages = append(messages, models.SystemMessage(priority))
	}
	// Prior system messages are dropped to avoid duplicated contracts; the
	// freshly rendered one is authoritative for this turn.
	for _, m := range st.Messages {
		if m.Role != models.RoleSystem {
			messages = append(messages, m)
		}
	}

	reply, err := o.client.Invoke(ctx, messages, defs, llm.Options{
		Model:       o.model,
		MaxTokens:   o.maxTokens,
		Temperature: o.limits.Temperature,
		Timeout:     o.limits.LLMTimeout,
	})
	if err != nil {
		return o.llmFailure(st, err), nil
	}

	return graph.Update{Messages: []models.Message{reply}}, nil
}

// llmFailure records the classified error and jumps to summary. Retries have
// already been spent inside the client, so any error here is final.
func (o *Orchestrator) llmFailure(st graph.State, err error) graph.Update {
	classified := llm.Classify(err)
	o.logger.Error("LLM call failed",
		"kind", classified.Kind, "phase", st.CurrentPhase, "error", err)

	return graph.Update{
		Phase:         graph.Ptr(graph.PhaseSummary),
		SkippedPhases: graph.PhasesBetween(st.CurrentPhase, graph.PhaseSummary),
		Errors: []models.InvestigationError{{
			Kind:    string(classified.Kind),
			Message: classified.Error(),
			Phase:   string(st.CurrentPhase),
			Fatal:   true,
		}},
	}
}

// warehouseRows extracts the row set from the latest warehouse tool message.
func warehouseRows(st graph.State, warehouseTool string) []map[string]any {
	for i := len(st.Messages) - 1; i >= 0; i-- {
		m := &st.Messages[i]
		if m.Role != models.RoleTool || m.ToolName != warehouseTool || m.Payload.IsError() {
			continue
		}
		return rowsFromPayload(m.Payload)
	}
	return nil
}

func rowsFromPayload(p *models.ToolPayload) []map[string]any {
	if p == nil || p.Kind != models.PayloadParsed {
		return nil
	}
	obj, ok := p.Parsed.(map[string]any)
	if !ok {
		return nil
	}
	rawRows, ok := obj["rows"].([]any)
	if !ok {
		return nil
	}
	rows := make([]map[string]any, 0, len(rawRows))
	for _, r := range rawRows {
		if row, ok := r.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows
}
