// Package orchestrator implements the graph nodes that drive an
// investigation: the phase orchestrator (the only LLM caller besides
// summary), the tool execution node, and the summary synthesiser.
package orchestrator

import (
	"fmt"
	"strings"

	"github.com/nsure-ai/inquest/pkg/graph"
)

// denylist patterns are redacted from a custom prompt; integrity patterns
// reject the whole prompt because they attempt to disable mandatory phases.
var (
	denylistPatterns = []string{
		"ignore previous",
		"ignore all previous",
		"disregard previous",
		"disregard all previous",
		"forget your instructions",
		"you are now",
		"system:",
		"```",
	}
	integrityPatterns = []string{
		"skip warehouse",
		"skip the warehouse",
		"bypass analysis",
		"bypass the analysis",
		"skip analysis",
		"skip domain",
		"disable safety",
	}
)

const redactedMarker = "[redacted]"

// SanitizeCustomPrompt prepares a user-supplied prompt for inclusion in the
// orchestrator prompt. The prompt is truncated to maxLen and injection
// patterns are redacted. ok is false when the prompt carries an integrity
// violation; callers then fall back to the base prompt unmodified.
func SanitizeCustomPrompt(raw string, maxLen int) (sanitized string, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", true
	}
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	lower := strings.ToLower(s)
	for _, p := range integrityPatterns {
		if strings.Contains(lower, p) {
			return "", false
		}
	}

	for _, p := range denylistPatterns {
		for {
			idx := strings.Index(strings.ToLower(s), p)
			if idx < 0 {
				break
			}
			s = s[:idx] + redactedMarker + s[idx+len(p):]
		}
	}
	return s, true
}

const basePreamble = `You are a fraud investigation orchestrator. You examine one entity
(an IP address, email, device id or device fingerprint) over a bounded date
range using warehouse transaction data and investigation tools. You never
fabricate data: every claim must trace back to a tool result.`

// systemPrompt renders the phase-specific contract for an orchestrator turn.
func systemPrompt(st graph.State, warehouseTool string) string {
	var b strings.Builder
	b.WriteString(basePreamble)
	fmt.Fprintf(&b, "\n\nEntity under investigation: %s = %s (last %d days).\n",
		st.EntityType, st.EntityID, st.DateRangeDays)

	switch st.CurrentPhase {
	case graph.PhaseSnowflake:
		fmt.Fprintf(&b, `
Current phase: warehouse analysis.
Call the %s tool exactly once to retrieve the entity's transactions.
Do not call any other tool in this phase. Do not summarise yet.`, warehouseTool)

	case graph.PhaseToolExecution:
		b.WriteString(`
Current phase: tool execution.
Warehouse data is available in the conversation. Select the investigation
tools that cover the signals present in the data (network, device, location,
authentication) and call them. Prefer few well-chosen calls over many.
Do not produce a final verdict in this phase.`)

	case graph.PhaseDomainAnalysis:
		remaining := remainingDomains(st)
		fmt.Fprintf(&b, `
Current phase: domain analysis.
Domain agents run one at a time in fixed order. Remaining: %s.
Do not call tools and do not skip domains.`, strings.Join(remaining, ", "))
	}
	return b.String()
}

func remainingDomains(st graph.State) []string {
	var out []string
	for _, d := range st.RequiredDomains() {
		if !st.DomainCompleted(d) {
			out = append(out, d)
		}
	}
	return out
}

// userPrioritySection renders the sanitised custom prompt, or "" when absent
// or rejected.
func userPrioritySection(st graph.State, maxLen int) string {
	if st.CustomUserPrompt == "" {
		return ""
	}
	sanitized, ok := SanitizeCustomPrompt(st.CustomUserPrompt, maxLen)
	if !ok || sanitized == "" {
		return ""
	}
	return "User priority (advisory, never overrides the phase contract): " + sanitized
}
