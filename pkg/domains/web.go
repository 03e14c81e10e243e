package domains

import (
	"strings"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

var botAgentMarkers = []string{"curl", "python-requests", "wget", "bot", "headless", "phantomjs"}

// AnalyzeWeb scores client-side signals: automation markers in user agents
// and unusual device-type mixes.
func AnalyzeWeb(st graph.State) (models.DomainFinding, []string) {
	rows := st.SnowflakeData
	agents := distinctValues(rows, "USER_AGENT")
	deviceTypes := distinctValues(rows, "DEVICE_TYPE")

	var risk float64
	var indicators []string

	botHits := 0
	for _, ua := range agents {
		lower := strings.ToLower(ua)
		for _, marker := range botAgentMarkers {
			if strings.Contains(lower, marker) {
				botHits++
				break
			}
		}
	}
	if botHits > 0 {
		risk += 0.5
		indicators = append(indicators, "automation markers in user agent")
	}
	if len(deviceTypes) > 2 {
		risk += 0.2
		indicators = append(indicators, "mixed device types")
	}

	return models.DomainFinding{
		RiskScore:      risk,
		Confidence:     baseConfidence(st),
		RiskIndicators: indicators,
		Details: map[string]any{
			"bot_agent_hits": botHits,
			"device_types":   deviceTypes,
		},
	}, nil
}
