package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nsure-ai/inquest/pkg/config"
	"github.com/nsure-ai/inquest/pkg/graph"
	"github.com/nsure-ai/inquest/pkg/llm"
	"github.com/nsure-ai/inquest/pkg/models"
	"github.com/nsure-ai/inquest/pkg/warehouse"
)

// SummaryNode synthesises the final verdict: overall risk, confidence,
// risk level and recommendations. It is the terminal LLM call of an
// investigation; when the LLM is unavailable the verdict degrades to the
// warehouse model-score mean.
type SummaryNode struct {
	client    llm.Client
	limits    config.Limits
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewSummaryNode builds the summary node.
func NewSummaryNode(client llm.Client, limits config.Limits, model string, maxTokens int) *SummaryNode {
	return &SummaryNode{
		client:    client,
		limits:    limits,
		model:     model,
		maxTokens: maxTokens,
		logger:    slog.With("component", "summary"),
	}
}

func (n *SummaryNode) ID() string { return graph.NodeSummary }

// verdict is the JSON document the summary prompt requests from the LLM.
type verdict struct {
	RiskScore       float64  `json:"risk_score"`
	Recommendations []string `json:"recommendations"`
	Rationale       string   `json:"rationale"`
}

// Run produces the final scores and transitions to complete.
func (n *SummaryNode) Run(ctx context.Context, st graph.State, _ graph.Decision) (graph.Update, error) {
	confidence := confidenceScore(st)

	// A fatal LLM failure earlier in the run fixes the partial verdict:
	// risk 0.5, confidence 0.
	if reason, fatal := fatalLLMError(st); fatal {
		n.logger.Warn("Partial verdict after fatal LLM failure", "reason", reason)
		return n.finish(st, 0.5, 0, []string{"investigation degraded: " + reason}), nil
	}

	risk, recs, err := n.llmVerdict(ctx, st)
	if err != nil {
		classified := llm.Classify(err)
		n.logger.Warn("Summary LLM call failed, using model-score fallback",
			"kind", classified.Kind, "error", err)
		risk = fallbackRisk(st)
		recs = nil
		return graph.Update{
			Errors: []models.InvestigationError{{
				Kind:    string(classified.Kind),
				Message: classified.Error(),
				Phase:   string(graph.PhaseSummary),
			}},
			Phase:           graph.Ptr(graph.PhaseComplete),
			RiskScore:       graph.Ptr(risk),
			ConfidenceScore: graph.Ptr(confidence),
			RiskLevel:       graph.Ptr(models.RiskLevel(risk)),
			Recommendations: finalRecommendations(st, recs),
		}, nil
	}

	return n.finish(st, risk, confidence, recs), nil
}

func (n *SummaryNode) finish(st graph.State, risk, confidence float64, recs []string) graph.Update {
	risk = models.Clamp01(risk)
	return graph.Update{
		Phase:           graph.Ptr(graph.PhaseComplete),
		RiskScore:       graph.Ptr(risk),
		ConfidenceScore: graph.Ptr(models.Clamp01(confidence)),
		RiskLevel:       graph.Ptr(models.RiskLevel(risk)),
		Recommendations: finalRecommendations(st, recs),
	}
}

// llmVerdict asks the LLM for the final risk document.
func (n *SummaryNode) llmVerdict(ctx context.Context, st graph.State) (float64, []string, error) {
	messages := []models.Message{
		models.SystemMessage(summarySystemPrompt),
		models.HumanMessage(summaryUserPrompt(st)),
	}
	reply, err := n.client.Invoke(ctx, messages, nil, llm.Options{
		Model:       n.model,
		MaxTokens:   n.maxTokens,
		Temperature: n.limits.Temperature,
		Timeout:     n.limits.LLMTimeout,
	})
	if err != nil {
		return 0, nil, err
	}

	v, ok := parseVerdict(reply.Content)
	if !ok {
		n.logger.Warn("Summary reply not parseable, using model-score fallback")
		return fallbackRisk(st), nil, nil
	}
	return v.RiskScore, v.Recommendations, nil
}

const summarySystemPrompt = `You are closing a fraud investigation. Given the domain findings and
warehouse statistics, respond with a single JSON object:
{"risk_score": <0..1>, "recommendations": [<short actions>], "rationale": <one sentence>}
Respond with JSON only.`

// summaryUserPrompt renders the collected evidence for the verdict call.
func summaryUserPrompt(st graph.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entity %s=%s over %d days.\n", st.EntityType, st.EntityID, st.DateRangeDays)
	fmt.Fprintf(&b, "Warehouse rows: %d.", len(st.SnowflakeData))
	if mean, ok := warehouse.MeanModelScore(st.SnowflakeData); ok {
		fmt.Fprintf(&b, " Mean model score: %.3f.", mean)
	}
	b.WriteString("\nDomain findings:\n")

	domains := make([]string, 0, len(st.DomainFindings))
	for d := range st.DomainFindings {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	for _, d := range domains {
		f := st.DomainFindings[d]
		fmt.Fprintf(&b, "- %s: risk=%.2f confidence=%.2f indicators=%s\n",
			d, f.RiskScore, f.Confidence, strings.Join(f.RiskIndicators, "; "))
	}
	return b.String()
}

// parseVerdict extracts the JSON verdict from the reply text, tolerating
// surrounding prose.
func parseVerdict(content string) (verdict, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return verdict{}, false
	}
	var v verdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return verdict{}, false
	}
	return v, true
}

// confidenceScore implements the fixed confidence formula.
func confidenceScore(st graph.State) float64 {
	score := 0.1*float64(len(st.ToolsUsed)) + 0.2*float64(len(st.DomainsCompleted))
	if st.SnowflakeCompleted {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

// fallbackRisk is the verdict when no LLM value is available: the mean
// warehouse model score, or 0 without data.
func fallbackRisk(st graph.State) float64 {
	if mean, ok := warehouse.MeanModelScore(st.SnowflakeData); ok {
		return models.Clamp01(mean)
	}
	return 0
}

// finalRecommendations merges LLM recommendations with the engine's own:
// an empty warehouse always earns a "monitor" entry.
func finalRecommendations(st graph.State, recs []string) []string {
	out := append([]string(nil), recs...)
	if len(st.SnowflakeData) == 0 && !contains(out, "monitor") {
		out = append(out, "monitor")
	}
	return out
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// fatalLLMError returns the first fatal llm.* error recorded on the state.
func fatalLLMError(st graph.State) (string, bool) {
	for _, e := range st.Errors {
		if e.Fatal && strings.HasPrefix(e.Kind, "llm.") {
			return e.Message, true
		}
	}
	return "", false
}
