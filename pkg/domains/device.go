package domains

import (
	"fmt"

	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/models"
)

// AnalyzeDevice scores device identity churn: many device ids or
// fingerprints behind one entity suggests device spoofing or account takeover.
func AnalyzeDevice(st graph.State) (models.DomainFinding, []string) {
	rows := st.SnowflakeData
	devices := distinctValues(rows, "DEVICE_ID")
	fingerprints := distinctValues(rows, "DEVICE_FINGERPRINT")
	agents := distinctValues(rows, "USER_AGENT")

	var risk float64
	var indicators []string

	if len(devices) > 3 {
		risk += 0.3
		indicators = append(indicators, fmt.Sprintf("%d distinct device ids", len(devices)))
	}
	// More fingerprints than devices means fingerprints rotate on a stable id.
	if len(fingerprints) > len(devices)+1 {
		risk += 0.3
		indicators = append(indicators, "fingerprint rotation on stable device id")
	}
	if len(agents) > 4 {
		risk += 0.15
		indicators = append(indicators, fmt.Sprintf("%d distinct user agents", len(agents)))
	}
	if signal, ok := toolRiskSignal(st, toolDeviceProfile); ok {
		risk += 0.35 * signal
		if signal >= 0.5 {
			indicators = append(indicators, "device profile flagged")
		}
	}

	return models.DomainFinding{
		RiskScore:      risk,
		Confidence:     baseConfidence(st),
		RiskIndicators: indicators,
		Details: map[string]any{
			"distinct_devices":      len(devices),
			"distinct_fingerprints": len(fingerprints),
			"distinct_user_agents":  len(agents),
		},
	}, nil
}
