package domains

import (
	"fmt"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

// Conventional tool names the agents consult when present. Tool backends are
// deployment-specific; every signal here is optional.
const (
	toolIPReputation  = "ip_reputation"
	toolDeviceProfile = "device_profile"
	toolGeoVelocity   = "geo_velocity"
	toolAuthEvents    = "auth_events"
)

// AnalyzeNetwork scores IP-level signals: address churn, country spread and
// any reputation verdict delivered by the ip_reputation tool.
func AnalyzeNetwork(st graph.State) (models.DomainFinding, []string) {
	rows := st.SnowflakeData
	ips := distinctValues(rows, "IP")
	countries := distinctValues(rows, "IP_COUNTRY_CODE")

	var risk float64
	var indicators []string

	if len(ips) > 3 {
		risk += 0.25
		indicators = append(indicators, fmt.Sprintf("%d distinct IP addresses", len(ips)))
	}
	if len(countries) > 2 {
		risk += 0.3
		indicators = append(indicators, fmt.Sprintf("traffic from %d countries", len(countries)))
	}
	if signal, ok := toolRiskSignal(st, toolIPReputation); ok {
		risk += 0.4 * signal
		if signal >= 0.5 {
			indicators = append(indicators, "ip reputation flagged")
		}
	}

	return models.DomainFinding{
		RiskScore:      risk,
		Confidence:     baseConfidence(st),
		RiskIndicators: indicators,
		Details: map[string]any{
			"distinct_ips":       len(ips),
			"distinct_countries": len(countries),
		},
	}, nil
}
