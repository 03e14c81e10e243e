package domains

import (
	"fmt"
	"strings"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

// AnalyzeAuthentication scores identity signals: declined decisions, email
// churn on a single device, and the auth_events tool verdict.
func AnalyzeAuthentication(st graph.State) (models.DomainFinding, []string) {
	rows := st.SnowflakeData
	emails := distinctValues(rows, "EMAIL")
	declined := countWhere(rows, "NSURE_LAST_DECISION", func(v any) bool {
		s := strings.ToLower(stringValue(v))
		return s == "declined" || s == "deny" || s == "rejected"
	})

	var risk float64
	var indicators []string

	if len(rows) > 0 && declined > 0 {
		ratio := float64(declined) / float64(len(rows))
		risk += 0.5 * ratio
		indicators = append(indicators, fmt.Sprintf("%d of %d transactions declined", declined, len(rows)))
	}
	if len(emails) > 2 {
		risk += 0.3
		indicators = append(indicators, fmt.Sprintf("%d distinct emails", len(emails)))
	}
	if signal, ok := toolRiskSignal(st, toolAuthEvents); ok {
		risk += 0.35 * signal
		if signal >= 0.5 {
			indicators = append(indicators, "authentication anomalies reported")
		}
	}

	return models.DomainFinding{
		RiskScore:      risk,
		Confidence:     baseConfidence(st),
		RiskIndicators: indicators,
		Details: map[string]any{
			"distinct_emails": len(emails),
			"declined_count":  declined,
		},
	}, nil
}
