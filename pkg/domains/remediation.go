package domains

import (
	"fmt"
	"sort"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

// remediationActions maps a triggering domain to the action it recommends.
var remediationActions = map[string]string{
	"network":        "block flagged IP addresses",
	"device":         "quarantine suspicious devices",
	"location":       "step-up verification for cross-border activity",
	"logs":           "escalate to manual review",
	"authentication": "force re-authentication",
	"web":            "challenge automated clients",
	"merchant":       "hold high-value transactions",
	"risk":           "decline pending transactions",
}

// AnalyzeRemediation runs only when a preceding domain crossed the
// remediation threshold. It converts the triggering findings into concrete
// actions; its own risk mirrors the strongest trigger.
func AnalyzeRemediation(st graph.State) (models.DomainFinding, []string) {
	var triggers []string
	var peak float64
	for domain, f := range st.DomainFindings {
		if f.RiskScore >= graph.RemediationThreshold {
			triggers = append(triggers, domain)
			if f.RiskScore > peak {
				peak = f.RiskScore
			}
		}
	}
	sort.Strings(triggers)

	var indicators, actions []string
	for _, domain := range triggers {
		indicators = append(indicators, fmt.Sprintf("remediation triggered by %s", domain))
		if action, ok := remediationActions[domain]; ok {
			actions = append(actions, action)
		}
	}

	return models.DomainFinding{
		RiskScore:      peak,
		Confidence:     baseConfidence(st),
		RiskIndicators: indicators,
		Details: map[string]any{
			"triggering_domains": triggers,
			"actions":            actions,
		},
	}, actions
}
