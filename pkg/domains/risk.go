package domains

import (
	"fmt"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
	"github.com/nsure-ai/inquest/pkg/warehouse"
)

// AnalyzeRisk aggregates the model-score evidence with the findings already
// produced by the preceding domains. It runs last before remediation.
func AnalyzeRisk(st graph.State) (models.DomainFinding, []string) {
	rows := st.SnowflakeData

	var risk float64
	var indicators []string

	mean, hasMean := warehouse.MeanModelScore(rows)
	if hasMean {
		risk = 0.6 * models.Clamp01(mean)
		indicators = append(indicators, fmt.Sprintf("mean model score %.3f", mean))
	}

	if len(rows) > 0 {
		fraudCount := countWhere(rows, "IS_FRAUD_TX", boolValue)
		if fraudCount > 0 {
			ratio := float64(fraudCount) / float64(len(rows))
			risk += 0.4 * ratio
			indicators = append(indicators, fmt.Sprintf("%d confirmed fraud transactions", fraudCount))
		}
	}

	// Lift the aggregate toward the strongest domain signal seen so far.
	var peak float64
	for _, f := range st.DomainFindings {
		if f.RiskScore > peak {
			peak = f.RiskScore
		}
	}
	if peak > risk {
		risk = (risk + peak) / 2
		indicators = append(indicators, "elevated domain signal")
	}

	return models.DomainFinding{
		RiskScore:      risk,
		Confidence:     baseConfidence(st),
		RiskIndicators: indicators,
		Details: map[string]any{
			"mean_model_score": mean,
			"peak_domain_risk": peak,
		},
	}, nil
}
