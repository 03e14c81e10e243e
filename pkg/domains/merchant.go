package domains

import (
	"fmt"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

// AnalyzeMerchant scores spend behaviour: outlier amounts and burst velocity
// relative to the observed window.
func AnalyzeMerchant(st graph.State) (models.DomainFinding, []string) {
	rows := st.SnowflakeData

	var risk float64
	var indicators []string
	var maxAmount, total float64

	for _, row := range rows {
		if amt, ok := numberValue(row["PAID_AMOUNT_VALUE"]); ok {
			total += amt
			if amt > maxAmount {
				maxAmount = amt
			}
		}
	}
	mean := 0.0
	if len(rows) > 0 {
		mean = total / float64(len(rows))
	}

	if mean > 0 && maxAmount > 5*mean {
		risk += 0.35
		indicators = append(indicators, fmt.Sprintf("outlier amount %.2f vs mean %.2f", maxAmount, mean))
	}
	if st.DateRangeDays > 0 && len(rows) > 10*st.DateRangeDays {
		risk += 0.35
		indicators = append(indicators, "transaction velocity burst")
	}

	return models.DomainFinding{
		RiskScore:      risk,
		Confidence:     baseConfidence(st),
		RiskIndicators: indicators,
		Details: map[string]any{
			"transaction_count": len(rows),
			"total_amount":      total,
			"max_amount":        maxAmount,
		},
	}, nil
}
