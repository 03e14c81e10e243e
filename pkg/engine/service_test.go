package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsure-ai/inquest/pkg/config"
	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/llm"
	"github.com/nsure-ai/inquest/pkg/tools"
	"github.com/nsure-ai/inquest/pkg/warehouse"
)

func TestRequestValidate(t *testing.T) {
	valid := Request{EntityType: "ip", EntityID: "203.0.113.5", DateRangeDays: 7}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name string
		req  Request
	}{
		{"unsupported entity type", Request{EntityType: "ssn", EntityID: "1", DateRangeDays: 7}},
		{"missing entity id", Request{EntityType: "ip", DateRangeDays: 7}},
		{"zero date range", Request{EntityType: "ip", EntityID: "1"}},
		{"negative date range", Request{EntityType: "ip", EntityID: "1", DateRangeDays: -3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.req.Validate())
		})
	}
}

func testService(t *testing.T) *Service {
	t.Helper()

	cfg := &config.Config{}
	cfg.Engine.LLM.Provider = "mock"
	cfg.Engine.LLM.Model = "scripted"
	cfg.Engine.LLM.MaxTokens = 1024
	cfg.Engine.Warehouse.TransactionsTable = "TRANSACTIONS_ENRICHED"
	cfg.Engine.Warehouse.ResultLimit = 100
	cfg.Engine.Queue.WorkerCount = 2
	cfg.Engine.Queue.QueueDepth = 8
	cfg.Limits = config.TestLimits()

	exec := warehouse.ExecutorFunc(func(context.Context, string, map[string]any) (*warehouse.QueryResult, error) {
		return &warehouse.QueryResult{Rows: []map[string]any{{"MODEL_SCORE": 0.25}}, RowCount: 1}, nil
	})
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(warehouse.NewTool(exec,
		cfg.Engine.Warehouse.TransactionsTable, cfg.Engine.Warehouse.ResultLimit)))

	s := NewService(cfg, llm.NewScriptedClient(), registry, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestStartTracksInvestigation(t *testing.T) {
	s := testService(t)

	id, err := s.Start(Request{EntityType: "ip", EntityID: "198.51.100.7", DateRangeDays: 7})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	st, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, st.InvestigationID)
	assert.Equal(t, "ip", st.EntityType)
	assert.Equal(t, "198.51.100.7", st.EntityID)

	// The mock client completes quickly; the terminal snapshot stays readable.
	require.Eventually(t, func() bool {
		st, ok := s.Get(id)
		return ok && st.CurrentPhase == graph.PhaseComplete
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartRejectsInvalidRequest(t *testing.T) {
	s := testService(t)

	_, err := s.Start(Request{EntityType: "ssn", EntityID: "1", DateRangeDays: 7})
	assert.Error(t, err)
}

func TestGetUnknown(t *testing.T) {
	s := testService(t)

	_, ok := s.Get("ghost")
	assert.False(t, ok)
	assert.False(t, s.Cancel("ghost"))
}
