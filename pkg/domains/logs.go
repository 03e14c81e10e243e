package domains

import (
	"fmt"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

// AnalyzeLogs scores the dispute and alert history recorded against the
// entity's transactions.
func AnalyzeLogs(st graph.State) (models.DomainFinding, []string) {
	rows := st.SnowflakeData
	disputes := sumColumn(rows, "DISPUTES")
	alerts := sumColumn(rows, "FRAUD_ALERTS")

	var risk float64
	var indicators []string

	if disputes > 0 {
		risk += 0.35
		indicators = append(indicators, fmt.Sprintf("%.0f disputes on record", disputes))
	}
	if alerts > 0 {
		risk += 0.35
		indicators = append(indicators, fmt.Sprintf("%.0f fraud alerts on record", alerts))
	}
	if disputes > 2 || alerts > 2 {
		risk += 0.2
		indicators = append(indicators, "repeated negative history")
	}

	return models.DomainFinding{
		RiskScore:      risk,
		Confidence:     baseConfidence(st),
		RiskIndicators: indicators,
		Details: map[string]any{
			"disputes":     disputes,
			"fraud_alerts": alerts,
		},
	}, nil
}
