package models

import "time"

// MaxRiskIndicators bounds the indicator list on a single finding.
const MaxRiskIndicators = 32

// DomainFinding is the structured output of one domain agent.
type DomainFinding struct {
	Domain         string         `json:"domain"`
	RiskScore      float64        `json:"risk_score"`
	Confidence     float64        `json:"confidence"`
	RiskIndicators []string       `json:"risk_indicators,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
}

// Clamp bounds the scores to [0,1] and truncates the indicator list.
// Agents call this before returning a finding so state never carries
// out-of-range values.
func (f *DomainFinding) Clamp() {
	f.RiskScore = clamp01(f.RiskScore)
	f.Confidence = clamp01(f.Confidence)
	if len(f.RiskIndicators) > MaxRiskIndicators {
		f.RiskIndicators = f.RiskIndicators[:MaxRiskIndicators]
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Clamp01 bounds a score to [0,1].
func Clamp01(v float64) float64 { return clamp01(v) }

// RiskLevel maps a risk score to its label.
func RiskLevel(score float64) string {
	switch {
	case score >= 0.8:
		return "critical"
	case score >= 0.6:
		return "high"
	case score >= 0.4:
		return "medium"
	case score >= 0.2:
		return "low"
	default:
		return "minimal"
	}
}

// InvestigationError is one entry in the investigation error log.
type InvestigationError struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Phase   string    `json:"phase"`
	Fatal   bool      `json:"fatal"`
	Time    time.Time `json:"time"`
}

// Error kinds for the investigation taxonomy. Tool-level kinds live in the
// ToolPayload ("invalid_arguments", "timeout", "execution").
const (
	ErrLLMContextLength  = "llm.context_length"
	ErrLLMModelNotFound  = "llm.model_not_found"
	ErrLLMRateLimit      = "llm.rate_limit"
	ErrLLMTransient      = "llm.transient"
	ErrWarehouseQuery    = "warehouse.query"
	ErrRuntimeRecursion  = "runtime.recursion_limit"
	ErrRuntimeTimeout    = "runtime.timeout"
	ErrRuntimeNode       = "runtime.node"
	ErrRuntimeCancelled  = "runtime.cancelled"
	ErrDeployCycle       = "deployment.dependency_cycle"
	ErrDeployService     = "deployment.service"
)

// RoutingDecision is one entry in the router audit trail.
type RoutingDecision struct {
	Rule      int       `json:"rule"`
	Next      string    `json:"next"`
	Reason    string    `json:"reason"`
	Phase     string    `json:"phase"`
	Loops     int       `json:"loops"`
	Timestamp time.Time `json:"timestamp"`
}
