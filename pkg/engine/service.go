// Package engine wires one investigation runtime per request: state store,
// router, orchestrator and domain nodes, all sharing the process-wide LLM
// client, tool registry and journal. Investigations run on the worker pool.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nsure-ai/inquest/pkg/config"
	"github.com/nsure-ai/inquest/pkg/domains"
	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/llm"
	"github.com/nsure-ai/inquest/pkg/orchestrator"
	"github.com/nsure-ai/inquest/pkg/queue"
	"github.com/nsure-ai/inquest/pkg/tools"
	"github.com/nsure-ai/inquest/pkg/warehouse"
)

// Request starts one investigation.
type Request struct {
	EntityType    string `json:"entity_type" binding:"required"`
	EntityID      string `json:"entity_id" binding:"required"`
	DateRangeDays int    `json:"date_range_days"`
	CustomPrompt  string `json:"custom_prompt"`
}

// Validate checks the request against the supported entity types.
func (r *Request) Validate() error {
	if _, err := warehouse.EntityColumn(r.EntityType); err != nil {
		return err
	}
	if r.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if r.DateRangeDays <= 0 {
		return fmt.Errorf("date_range_days must be positive, got %d", r.DateRangeDays)
	}
	return nil
}

// Service owns the shared investigation infrastructure.
type Service struct {
	cfg      *config.Config
	client   llm.Client
	registry *tools.Registry
	journal  graph.Journal
	pool     *queue.Pool
	logger   *slog.Logger

	mu     sync.RWMutex
	stores map[string]*graph.Store
}

// NewService assembles the engine. journal may be nil (disabled persistence).
func NewService(cfg *config.Config, client llm.Client, registry *tools.Registry, journal graph.Journal) *Service {
	if journal == nil {
		journal = graph.NopJournal{}
	}
	return &Service{
		cfg:      cfg,
		client:   client,
		registry: registry,
		journal:  journal,
		pool:     queue.NewPool(cfg.Engine.Queue.WorkerCount, cfg.Engine.Queue.QueueDepth),
		logger:   slog.With("component", "engine"),
		stores:   make(map[string]*graph.Store),
	}
}

// Start validates the request, builds the runtime and submits it to the
// worker pool. Returns the new investigation id.
func (s *Service) Start(req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	st := graph.NewState(id, req.EntityType, req.EntityID, req.DateRangeDays, req.CustomPrompt)
	store := graph.NewStore(st, s.journal)
	runtime := s.buildRuntime(store)

	s.mu.Lock()
	s.stores[id] = store
	s.mu.Unlock()

	err := s.pool.Submit(id, func(ctx context.Context) {
		final, runErr := runtime.Run(ctx)
		if runErr != nil {
			s.logger.Error("Investigation aborted", "investigation_id", id, "error", runErr)
			return
		}
		s.logger.Info("Investigation finished",
			"investigation_id", id,
			"risk_score", final.RiskScore,
			"risk_level", final.RiskLevel,
			"duration_ms", final.TotalDurationMS)
	})
	if err != nil {
		s.mu.Lock()
		delete(s.stores, id)
		s.mu.Unlock()
		return "", err
	}
	return id, nil
}

func (s *Service) buildRuntime(store *graph.Store) *graph.Runtime {
	limits := s.cfg.Limits
	model := s.cfg.Engine.LLM.Model
	maxTokens := s.cfg.Engine.LLM.MaxTokens

	nodes := []graph.Node{
		orchestrator.New(s.client, s.registry, limits, model, maxTokens, warehouse.ToolName),
		orchestrator.NewToolsNode(tools.NewExecutor(s.registry, limits.PerToolTimeout)),
		orchestrator.NewSummaryNode(s.client, limits, model, maxTokens),
	}
	nodes = append(nodes, domains.All()...)

	router := graph.NewRouter(limits, warehouse.ToolName)
	return graph.NewRuntime(store, router, nodes, limits)
}

// Get returns a snapshot of the investigation state.
func (s *Service) Get(id string) (graph.State, bool) {
	s.mu.RLock()
	store, ok := s.stores[id]
	s.mu.RUnlock()
	if !ok {
		return graph.State{}, false
	}
	return store.Snapshot(), true
}

// Cancel aborts a queued or running investigation.
func (s *Service) Cancel(id string) bool {
	return s.pool.Cancel(id)
}

// Shutdown drains the pool and closes the LLM client.
func (s *Service) Shutdown(ctx context.Context) error {
	poolErr := s.pool.Stop(ctx)
	if err := s.client.Close(); err != nil && poolErr == nil {
		poolErr = err
	}
	return poolErr
}
