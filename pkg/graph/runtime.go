package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsure-ai/inquest/pkg/config"
	"github.com/nsure-ai/inquest/pkg/models"
)

// Node executes one step of the investigation. Nodes receive a state
// snapshot plus the routing decision that selected them, and always return
// an Update: expected failures (LLM errors, tool errors) are data inside the
// update, not Go errors. A returned error means infrastructure failure and
// aborts toward summary.
type Node interface {
	ID() string
	Run(ctx context.Context, st State, dec Decision) (Update, error)
}

// ErrUnknownNode is returned when the router selects a node that was never
// registered. This is a programmer error.
var ErrUnknownNode = errors.New("router selected unregistered node")

// Runtime drives the investigation loop: route, execute, merge, repeat —
// under a recursion budget and a wall-clock budget.
type Runtime struct {
	store  *Store
	router *Router
	nodes  map[string]Node
	limits config.Limits
	logger *slog.Logger
}

// NewRuntime assembles a runtime over the given store, router and nodes.
func NewRuntime(store *Store, router *Router, nodes []Node, limits config.Limits) *Runtime {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID()] = n
	}
	return &Runtime{
		store:  store,
		router: router,
		nodes:  byID,
		limits: limits,
		logger: slog.With("component", "runtime", "investigation_id", store.Snapshot().InvestigationID),
	}
}

// Run executes the investigation to completion and returns the final state.
// The returned error is non-nil only for programmer errors (unregistered
// node, invariant violation); every expected failure mode terminates with a
// summarised state instead.
func (r *Runtime) Run(ctx context.Context) (State, error) {
	r.store.Start()
	start := time.Now()
	deadline := start.Add(r.limits.WallClock)
	warnAt := start.Add(time.Duration(float64(r.limits.WallClock) * r.limits.DeadlockWarnAt))
	warned := false

	runCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	steps := 0
	recursionReported := false

	for {
		if err := runCtx.Err(); err != nil {
			kind := models.ErrRuntimeTimeout
			msg := fmt.Sprintf("wall-clock budget %s exhausted", r.limits.WallClock)
			if ctx.Err() != nil {
				kind = models.ErrRuntimeCancelled
				msg = "investigation cancelled"
			}
			r.logger.Warn("Safety termination", "kind", kind, "steps", steps)
			r.store.AppendError(models.InvestigationError{Kind: kind, Message: msg, Fatal: true})
			return r.forceSummary(), nil
		}

		if !warned && time.Now().After(warnAt) {
			warned = true
			r.logger.Warn("Investigation approaching wall-clock budget",
				"elapsed", time.Since(start), "budget", r.limits.WallClock)
		}

		if steps >= r.limits.RecursionBudget {
			r.logger.Warn("Recursion budget exhausted", "steps", steps)
			r.store.AppendError(models.InvestigationError{
				Kind:    models.ErrRuntimeRecursion,
				Message: fmt.Sprintf("recursion budget %d exhausted", r.limits.RecursionBudget),
				Fatal:   true,
			})
			return r.forceSummary(), nil
		}

		snap := r.store.Snapshot()
		dec := r.router.Route(snap)
		r.store.AppendRouting(Record(dec, snap))
		r.logger.Debug("Routing decision",
			"rule", dec.Rule, "next", dec.Next, "phase", snap.CurrentPhase, "reason", dec.Reason)

		// Rule 1 is the safety valve for a runaway orchestrator: record it as
		// a recursion-limit termination the first time it fires.
		if dec.Rule == 1 {
			if !recursionReported {
				recursionReported = true
				r.store.AppendError(models.InvestigationError{
					Kind:    models.ErrRuntimeRecursion,
					Message: dec.Reason,
					Fatal:   true,
				})
			}
			// The ceiling can fire from any phase; align the machine so the
			// summary node's terminal transition is legal.
			r.store.ForcePhase(PhaseSummary)
			snap = r.store.Snapshot()
		}

		if dec.Next == NodeEnd {
			return r.store.Finalize(), nil
		}

		node, ok := r.nodes[dec.Next]
		if !ok {
			return r.store.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownNode, dec.Next)
		}

		// Only orchestrator turns consume the recursion budget; every other
		// node runs a bounded number of times per orchestrator turn, and the
		// wall-clock budget covers the rest.
		if dec.Next == NodeOrchestrator {
			steps++
			r.store.IncrementCounter(CounterOrchestratorLoops)
			snap = r.store.Snapshot()
		}

		update, err := node.Run(runCtx, snap, dec)
		if err != nil {
			r.logger.Error("Node failed", "node", dec.Next, "error", err)
			r.store.AppendError(models.InvestigationError{
				Kind:    models.ErrRuntimeNode,
				Message: fmt.Sprintf("node %s: %v", dec.Next, err),
				Fatal:   true,
			})
			return r.forceSummary(), nil
		}

		if _, err := r.store.Apply(update); err != nil {
			// Invariant violation inside a merge is a programmer error.
			return r.store.Snapshot(), fmt.Errorf("apply update from %s: %w", dec.Next, err)
		}
	}
}

// forceSummary runs the summary node exactly once on a fresh context, then
// finalises. Used for every safety termination path.
func (r *Runtime) forceSummary() State {
	r.store.ForcePhase(PhaseSummary)

	node, ok := r.nodes[NodeSummary]
	if ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		snap := r.store.Snapshot()
		update, err := node.Run(ctx, snap, Decision{Next: NodeSummary, Reason: "forced summary"})
		if err != nil {
			r.logger.Error("Forced summary failed", "error", err)
		} else {
			// Drop any phase transition the summary proposes; Finalize owns the
			// terminal transition here.
			update.Phase = nil
			if _, err := r.store.Apply(update); err != nil {
				r.logger.Error("Forced summary apply failed", "error", err)
			}
		}
	}
	return r.store.Finalize()
}
