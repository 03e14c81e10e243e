package graph

import (
	"fmt"
	"time"

	"github.com/nsure-ai/inquest/pkg/config"
	"github.com/nsure-ai/inquest/pkg/models"
)

// Node identifiers the router can select.
const (
	NodeOrchestrator = "orchestrator"
	NodeTools        = "tools"
	NodeSummary      = "summary"
	NodeEnd          = "end"
)

// DomainNode returns the node id for a domain agent.
func DomainNode(domain string) string { return "domain:" + domain }

// Decision is a router verdict. Rule is the precedence rule number that
// fired; ForceAdvance tells the orchestrator the current phase hit a
// progression trigger and must be advanced on its next turn.
type Decision struct {
	Next         string
	Rule         int
	Reason       string
	ForceAdvance bool
}

// Router selects the next node from a state snapshot. Route is deterministic
// and side-effect-free: all safety ceilings live here, resolved from the
// limits fixed at construction.
type Router struct {
	limits        config.Limits
	warehouseTool string
}

// NewRouter builds a router for the given ceiling policy. warehouseTool is
// the tool name whose observation completes snowflake_analysis.
func NewRouter(limits config.Limits, warehouseTool string) *Router {
	return &Router{limits: limits, warehouseTool: warehouseTool}
}

// Route applies the precedence rules, highest first.
func (r *Router) Route(st State) Decision {
	// Rule 1: global orchestrator ceiling.
	if st.OrchestratorLoops >= r.limits.OrchestratorCalls {
		return Decision{
			Next: NodeSummary, Rule: 1,
			Reason: fmt.Sprintf("orchestrator calls %d reached global ceiling %d",
				st.OrchestratorLoops, r.limits.OrchestratorCalls),
		}
	}

	// Rule 2: unresolved tool calls. Message ordering guarantees every Tool
	// reply directly follows its AI request, so an AI tail means unresolved.
	if last := st.LastMessage(); last != nil && last.HasToolCalls() {
		return Decision{
			Next: NodeTools, Rule: 2,
			Reason: fmt.Sprintf("last AI message carries %d unresolved tool calls", len(last.ToolCalls)),
		}
	}

	// Rule 3: forced progression out of the current phase.
	if reason, forced := r.progressionTrigger(st); forced {
		return Decision{Next: NodeOrchestrator, Rule: 3, Reason: reason, ForceAdvance: true}
	}

	// Rule 4: next incomplete required domain.
	if st.CurrentPhase == PhaseDomainAnalysis {
		if domain := st.NextIncompleteDomain(); domain != "" {
			return Decision{
				Next: DomainNode(domain), Rule: 4,
				Reason: fmt.Sprintf("domain %s has not completed", domain),
			}
		}
	}

	// Rule 5: summary phase runs the summary node.
	if st.CurrentPhase == PhaseSummary {
		return Decision{Next: NodeSummary, Rule: 5, Reason: "phase is summary"}
	}

	// Rule 6: terminal.
	if st.CurrentPhase == PhaseComplete {
		return Decision{Next: NodeEnd, Rule: 6, Reason: "phase is complete"}
	}

	// Rule 7: default to the orchestrator.
	return Decision{Next: NodeOrchestrator, Rule: 7, Reason: "no higher-precedence rule fired"}
}

// progressionTrigger checks the current phase's forced-progression policy.
func (r *Router) progressionTrigger(st State) (string, bool) {
	loops := st.PhaseLoops[st.CurrentPhase]

	switch st.CurrentPhase {
	case PhaseSnowflake:
		if st.WarehouseToolObserved(r.warehouseTool) && !st.SnowflakeCompleted {
			return "warehouse tool message observed", true
		}
		if loops >= r.limits.SnowflakeLoops {
			return fmt.Sprintf("snowflake loops %d reached ceiling %d", loops, r.limits.SnowflakeLoops), true
		}

	case PhaseToolExecution:
		if st.ToolExecutionAttempts >= r.limits.ToolAttemptsTrigger {
			return fmt.Sprintf("tool attempts %d reached trigger %d",
				st.ToolExecutionAttempts, r.limits.ToolAttemptsTrigger), true
		}
		if len(st.ToolsUsed) >= r.limits.ToolCountCeiling {
			return fmt.Sprintf("tools used %d reached ceiling %d",
				len(st.ToolsUsed), r.limits.ToolCountCeiling), true
		}
		if loops >= r.limits.ToolExecutionLoops {
			return fmt.Sprintf("tool execution loops %d reached ceiling %d",
				loops, r.limits.ToolExecutionLoops), true
		}

	case PhaseDomainAnalysis:
		if st.NextIncompleteDomain() == "" {
			return "all required domains completed", true
		}
		if loops >= r.limits.DomainLoops {
			return fmt.Sprintf("domain loops %d reached ceiling %d", loops, r.limits.DomainLoops), true
		}
	}
	return "", false
}

// Record turns a decision into an audit-trail entry for the given snapshot.
func Record(dec Decision, st State) models.RoutingDecision {
	return models.RoutingDecision{
		Rule:      dec.Rule,
		Next:      dec.Next,
		Reason:    dec.Reason,
		Phase:     string(st.CurrentPhase),
		Loops:     st.OrchestratorLoops,
		Timestamp: time.Now().UTC(),
	}
}
