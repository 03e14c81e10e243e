package graph_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsure-ai/inquest/pkg/config"
	"github.com/nsure-ai/inquest/pkg/domains"
	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/llm"
	"github.com/nsure-ai/inquest/pkg/models"
	"github.com/nsure-ai/inquest/pkg/orchestrator"
	"github.com/nsure-ai/inquest/pkg/tools"
	"github.com/nsure-ai/inquest/pkg/warehouse"
)

func warehouseRow(score float64) map[string]any {
	return map[string]any{
		"TX_ID_KEY":           "tx-1",
		"EMAIL":               "user@example.com",
		"MODEL_SCORE":         score,
		"IS_FRAUD_TX":         false,
		"NSURE_LAST_DECISION": "approved",
		"DISPUTES":            0,
		"FRAUD_ALERTS":        0,
		"PAID_AMOUNT_VALUE":   42.5,
		"IP":                  "203.0.113.5",
		"IP_COUNTRY_CODE":     "US",
		"DEVICE_ID":           "dev-1",
		"DEVICE_FINGERPRINT":  "fp-1",
		"USER_AGENT":          "Mozilla/5.0",
		"DEVICE_TYPE":         "mobile",
		"TX_DATETIME":         "2026-08-20T10:00:00Z",
	}
}

func stubWarehouse(rows []map[string]any) warehouse.QueryExecutor {
	return warehouse.ExecutorFunc(func(context.Context, string, map[string]any) (*warehouse.QueryResult, error) {
		return &warehouse.QueryResult{Rows: rows, RowCount: len(rows)}, nil
	})
}

func lowRiskTool(name string) tools.Tool {
	return &tools.Func{
		Def: models.ToolDefinition{
			Name:        name,
			Description: "test tool",
			InputSchema: json.RawMessage(`{"type": "object"}`),
		},
		Fn: func(context.Context, json.RawMessage) (*tools.Result, error) {
			return tools.JSONResult(map[string]any{"risk_score": 0.1})
		},
	}
}

func warehouseCall(id string) models.ToolCall {
	return models.ToolCall{
		ID:        id,
		Name:      warehouse.ToolName,
		Arguments: json.RawMessage(`{"entity_type":"ip","entity_id":"203.0.113.5","date_range_days":7}`),
	}
}

// buildRuntime assembles a full investigation over stub infrastructure.
func buildRuntime(t *testing.T, rows []map[string]any, client llm.Client) (*graph.Store, *graph.Runtime) {
	t.Helper()
	limits := config.TestLimits()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(warehouse.NewTool(stubWarehouse(rows), "TRANSACTIONS_ENRICHED", 500)))
	require.NoError(t, registry.Register(lowRiskTool("ip_reputation")))

	st := graph.NewState("inv-e2e", "ip", "203.0.113.5", 7, "")
	store := graph.NewStore(st, nil)

	nodes := []graph.Node{
		orchestrator.New(client, registry, limits, "test-model", 1024, warehouse.ToolName),
		orchestrator.NewToolsNode(tools.NewExecutor(registry, limits.PerToolTimeout)),
		orchestrator.NewSummaryNode(client, limits, "test-model", 1024),
	}
	nodes = append(nodes, domains.All()...)

	return store, graph.NewRuntime(store, graph.NewRouter(limits, warehouse.ToolName), nodes, limits)
}

func TestInvestigationHappyPath(t *testing.T) {
	rows := make([]map[string]any, 10)
	for i := range rows {
		rows[i] = warehouseRow(0.42)
	}

	client := llm.NewScriptedClient(
		llm.Respond(models.AIMessage("querying warehouse", warehouseCall("call-wh"))),
		llm.Respond(models.AIMessage("checking reputation", models.ToolCall{
			ID:        "call-rep",
			Name:      "ip_reputation",
			Arguments: json.RawMessage(`{"ip":"203.0.113.5"}`),
		})),
		llm.Respond(models.AIMessage("continuing analysis")),
	)

	_, rt := buildRuntime(t, rows, client)
	final, err := rt.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, graph.PhaseComplete, final.CurrentPhase)
	assert.True(t, final.SnowflakeCompleted)
	assert.GreaterOrEqual(t, len(final.ToolsUsed), 2)
	for _, domain := range []string{"network", "device", "location", "logs", "authentication", "risk"} {
		assert.True(t, final.DomainCompleted(domain), "domain %s should be complete", domain)
	}
	assert.InDelta(t, 0.42, final.RiskScore, 0.13)
	assert.GreaterOrEqual(t, final.ConfidenceScore, 0.5)
	assert.Equal(t, "medium", final.RiskLevel)
	for _, e := range final.Errors {
		assert.False(t, e.Fatal, "unexpected fatal error: %+v", e)
	}
	assert.NotEmpty(t, final.RoutingDecisions)
}

func TestInvestigationWarehouseSilent(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.Respond(models.AIMessage("querying warehouse", warehouseCall("call-wh"))),
		llm.Respond(models.AIMessage("no data to act on")),
	)

	_, rt := buildRuntime(t, nil, client)
	final, err := rt.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, graph.PhaseComplete, final.CurrentPhase)
	assert.True(t, final.SnowflakeCompleted, "empty rows still complete the warehouse phase")
	for _, domain := range graph.DomainOrder {
		assert.True(t, final.DomainCompleted(domain), "domain %s should be complete", domain)
	}
	assert.LessOrEqual(t, final.RiskScore, 0.2)
	assert.Contains(t, final.Recommendations, "monitor")
	for _, f := range final.DomainFindings {
		assert.LessOrEqual(t, f.Confidence, 0.5, "findings without data carry reduced confidence")
	}
}

func TestInvestigationLLMContextLengthFatal(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.Respond(models.AIMessage("querying warehouse", warehouseCall("call-wh"))),
		llm.Fail(&llm.Error{Kind: llm.KindContextLength, Message: "prompt is too long"}),
	)

	rows := []map[string]any{warehouseRow(0.9)}
	_, rt := buildRuntime(t, rows, client)
	final, err := rt.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, graph.PhaseComplete, final.CurrentPhase)
	assert.Equal(t, 0.5, final.RiskScore)
	assert.Equal(t, 0.0, final.ConfidenceScore)
	assert.False(t, final.DomainCompleted(graph.DomainRemediation), "remediation never runs after a fatal")

	var kinds []string
	for _, e := range final.Errors {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, models.ErrLLMContextLength)
	assert.Contains(t, final.SkippedPhases, graph.PhaseDomainAnalysis)
}

// loopingNode stands in for an orchestrator that always requests another tool
// call and never advances the phase.
type loopingNode struct{ n int }

func (l *loopingNode) ID() string { return graph.NodeOrchestrator }

func (l *loopingNode) Run(context.Context, graph.State, graph.Decision) (graph.Update, error) {
	l.n++
	return graph.Update{
		Messages: []models.Message{models.AIMessage("one more tool", models.ToolCall{
			ID:        fmt.Sprintf("call-%d", l.n),
			Name:      "ip_reputation",
			Arguments: json.RawMessage(`{}`),
		})},
	}, nil
}

func TestInvestigationRunawaySafety(t *testing.T) {
	limits := config.TestLimits()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(lowRiskTool("ip_reputation")))

	client := llm.NewScriptedClient(llm.Respond(models.AIMessage("verdict unavailable")))

	st := graph.NewState("inv-runaway", "ip", "203.0.113.5", 7, "")
	store := graph.NewStore(st, nil)
	nodes := []graph.Node{
		&loopingNode{},
		orchestrator.NewToolsNode(tools.NewExecutor(registry, limits.PerToolTimeout)),
		orchestrator.NewSummaryNode(client, limits, "test-model", 1024),
	}

	rt := graph.NewRuntime(store, graph.NewRouter(limits, warehouse.ToolName), nodes, limits)
	final, err := rt.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, graph.PhaseComplete, final.CurrentPhase)
	assert.Equal(t, limits.OrchestratorCalls, final.OrchestratorLoops,
		"loop counter stops at the global ceiling")

	recursion := 0
	for _, e := range final.Errors {
		if e.Kind == models.ErrRuntimeRecursion {
			recursion++
		}
	}
	assert.Equal(t, 1, recursion, "exactly one safety termination record")
	assert.NotEmpty(t, final.RiskLevel)
}

// slowNode burns wall-clock time without ever advancing the phase.
type slowNode struct{ delay time.Duration }

func (s *slowNode) ID() string { return graph.NodeOrchestrator }

func (s *slowNode) Run(context.Context, graph.State, graph.Decision) (graph.Update, error) {
	time.Sleep(s.delay)
	return graph.Update{}, nil
}

func TestInvestigationWallClockExhausted(t *testing.T) {
	limits := config.TestLimits()
	limits.WallClock = 50 * time.Millisecond

	client := llm.NewScriptedClient(
		llm.Respond(models.AIMessage(`{"risk_score": 0.3, "recommendations": ["review"], "rationale": "terminated before full analysis"}`)),
	)

	st := graph.NewState("inv-slow", "ip", "203.0.113.5", 7, "")
	store := graph.NewStore(st, nil)
	nodes := []graph.Node{
		&slowNode{delay: 10 * time.Millisecond},
		orchestrator.NewSummaryNode(client, limits, "test-model", 1024),
	}

	rt := graph.NewRuntime(store, graph.NewRouter(limits, warehouse.ToolName), nodes, limits)
	final, err := rt.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, graph.PhaseComplete, final.CurrentPhase)
	timeouts := 0
	for _, e := range final.Errors {
		if e.Kind == models.ErrRuntimeTimeout {
			timeouts++
			assert.True(t, e.Fatal, "wall-clock termination is fatal")
		}
	}
	assert.Equal(t, 1, timeouts, "exactly one wall-clock termination record")

	// The forced summary still produces a verdict.
	assert.InDelta(t, 0.3, final.RiskScore, 1e-9)
	assert.Equal(t, "low", final.RiskLevel)
	assert.Contains(t, final.Recommendations, "review")
	assert.False(t, final.EndTime.IsZero())
}

func TestInvestigationCancelled(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.Respond(models.AIMessage(`{"risk_score": 0.0, "recommendations": [], "rationale": "cancelled by operator"}`)),
	)

	rows := []map[string]any{warehouseRow(0.42)}
	_, rt := buildRuntime(t, rows, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	final, err := rt.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, graph.PhaseComplete, final.CurrentPhase)
	cancelled := 0
	for _, e := range final.Errors {
		if e.Kind == models.ErrRuntimeCancelled {
			cancelled++
			assert.True(t, e.Fatal, "cancellation is fatal")
		}
	}
	assert.Equal(t, 1, cancelled, "exactly one cancellation record")
	assert.NotEmpty(t, final.RiskLevel, "cancelled investigations still summarise")
	assert.False(t, final.EndTime.IsZero())
}
