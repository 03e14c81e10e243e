package domains

import (
	"fmt"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

// AnalyzeLocation scores geographic spread and impossible-travel signals from
// the geo_velocity tool.
func AnalyzeLocation(st graph.State) (models.DomainFinding, []string) {
	rows := st.SnowflakeData
	countries := distinctValues(rows, "IP_COUNTRY_CODE")

	var risk float64
	var indicators []string

	switch {
	case len(countries) > 3:
		risk += 0.45
		indicators = append(indicators, fmt.Sprintf("activity across %d countries", len(countries)))
	case len(countries) > 1:
		risk += 0.2
		indicators = append(indicators, "multi-country activity")
	}
	if signal, ok := toolRiskSignal(st, toolGeoVelocity); ok {
		risk += 0.45 * signal
		if signal >= 0.5 {
			indicators = append(indicators, "impossible travel detected")
		}
	}

	return models.DomainFinding{
		RiskScore:      risk,
		Confidence:     baseConfidence(st),
		RiskIndicators: indicators,
		Details:        map[string]any{"countries": countries},
	}, nil
}
