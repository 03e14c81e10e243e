// Package domains implements the domain analysis agents. Each agent reads a
// state snapshot (warehouse rows plus tool results), scores one risk domain
// and returns a single finding. Agents never issue tool calls; tools are
// orchestrator-driven.
package domains

import (
	"context"
	"log/slog"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

// Analyzer scores one domain from a read-only snapshot. Recommendations are
// optional; most agents return none and leave remediation advice to the
// remediation agent.
type Analyzer func(st graph.State) (models.DomainFinding, []string)

// AgentNode adapts an Analyzer into a graph node.
type AgentNode struct {
	domain  string
	analyze Analyzer
	logger  *slog.Logger
}

// NewAgent wraps an analyzer for the named domain.
func NewAgent(domain string, analyze Analyzer) *AgentNode {
	return &AgentNode{
		domain:  domain,
		analyze: analyze,
		logger:  slog.With("component", "domain_agent", "domain", domain),
	}
}

func (a *AgentNode) ID() string { return graph.DomainNode(a.domain) }

// Run produces the domain finding and marks the domain complete. Findings are
// clamped so state never carries out-of-range scores.
func (a *AgentNode) Run(_ context.Context, st graph.State, _ graph.Decision) (graph.Update, error) {
	finding, recs := a.analyze(st)
	finding.Domain = a.domain
	finding.Clamp()

	a.logger.Info("Domain analysis complete",
		"risk_score", finding.RiskScore,
		"confidence", finding.Confidence,
		"indicators", len(finding.RiskIndicators))

	return graph.Update{
		DomainsCompleted: []string{a.domain},
		DomainFindings:   map[string]models.DomainFinding{a.domain: finding},
		Recommendations:  recs,
	}, nil
}

// All returns every domain agent node in execution order, remediation last.
func All() []graph.Node {
	return []graph.Node{
		NewAgent("network", AnalyzeNetwork),
		NewAgent("device", AnalyzeDevice),
		NewAgent("location", AnalyzeLocation),
		NewAgent("logs", AnalyzeLogs),
		NewAgent("authentication", AnalyzeAuthentication),
		NewAgent("web", AnalyzeWeb),
		NewAgent("merchant", AnalyzeMerchant),
		NewAgent("risk", AnalyzeRisk),
		NewAgent(graph.DomainRemediation, AnalyzeRemediation),
	}
}
