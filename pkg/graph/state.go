package graph

import (
	"time"

	"github.com/nsure-ai/inquest/pkg/models"
)

// State is the single mutable investigation record. It is owned by the
// runtime and mutated only through Store.Apply merges of Update values
// returned by nodes.
type State struct {
	InvestigationID string `json:"investigation_id"`
	EntityType      string `json:"entity_type"`
	EntityID        string `json:"entity_id"`
	DateRangeDays   int    `json:"date_range_days"`

	CurrentPhase Phase `json:"current_phase"`

	Messages []models.Message `json:"messages"`

	ToolsUsed   map[string]bool                `json:"tools_used"`
	ToolResults map[string]*models.ToolPayload `json:"tool_results"`

	SnowflakeData      []map[string]any `json:"snowflake_data,omitempty"`
	SnowflakeCompleted bool             `json:"snowflake_completed"`

	DomainsCompleted []string                        `json:"domains_completed"`
	DomainFindings   map[string]models.DomainFinding `json:"domain_findings"`

	RiskScore       float64  `json:"risk_score"`
	ConfidenceScore float64  `json:"confidence_score"`
	RiskLevel       string   `json:"risk_level,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`

	OrchestratorLoops     int           `json:"orchestrator_loops"`
	PhaseLoops            map[Phase]int `json:"phase_loops"`
	ToolExecutionAttempts int           `json:"tool_execution_attempts"`

	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time,omitzero"`
	TotalDurationMS int64     `json:"total_duration_ms"`

	CustomUserPrompt string `json:"custom_user_prompt,omitempty"`

	Errors           []models.InvestigationError `json:"errors,omitempty"`
	RoutingDecisions []models.RoutingDecision    `json:"routing_decisions,omitempty"`

	// SkippedPhases lists phases bypassed by a forced jump to summary.
	SkippedPhases []Phase `json:"skipped_due_to_error,omitempty"`
}

// NewState creates the initial record for an investigation.
func NewState(id, entityType, entityID string, dateRangeDays int, customPrompt string) *State {
	return &State{
		InvestigationID:  id,
		EntityType:       entityType,
		EntityID:         entityID,
		DateRangeDays:    dateRangeDays,
		CurrentPhase:     PhaseInitialization,
		ToolsUsed:        make(map[string]bool),
		ToolResults:      make(map[string]*models.ToolPayload),
		DomainFindings:   make(map[string]models.DomainFinding),
		PhaseLoops:       make(map[Phase]int),
		CustomUserPrompt: customPrompt,
	}
}

// LastMessage returns the most recent message, or nil when empty.
func (s *State) LastMessage() *models.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// DomainCompleted reports whether the named domain agent has returned.
func (s *State) DomainCompleted(name string) bool {
	for _, d := range s.DomainsCompleted {
		if d == name {
			return true
		}
	}
	return false
}

// RemediationRequired reports whether any labelled risk crosses the
// remediation threshold.
func (s *State) RemediationRequired() bool {
	for _, f := range s.DomainFindings {
		if f.RiskScore >= RemediationThreshold {
			return true
		}
	}
	return false
}

// RequiredDomains lists the domains the investigation must complete, in
// execution order. Remediation joins the list once risk has completed and the
// threshold is crossed.
func (s *State) RequiredDomains() []string {
	required := make([]string, 0, len(DomainOrder)+1)
	required = append(required, DomainOrder...)
	if s.DomainCompleted("risk") && s.RemediationRequired() {
		required = append(required, DomainRemediation)
	}
	return required
}

// NextIncompleteDomain returns the first required domain without a finding,
// or "" when all are complete.
func (s *State) NextIncompleteDomain() string {
	for _, d := range s.RequiredDomains() {
		if !s.DomainCompleted(d) {
			return d
		}
	}
	return ""
}

// WarehouseToolObserved reports whether a warehouse Tool message with a
// non-error payload exists in the conversation.
func (s *State) WarehouseToolObserved(warehouseTool string) bool {
	for i := range s.Messages {
		m := &s.Messages[i]
		if m.Role == models.RoleTool && m.ToolName == warehouseTool && !m.Payload.IsError() {
			return true
		}
	}
	return false
}

// Clone returns a deep-enough copy for concurrent readers: slices and maps
// are copied, payload and finding values are shared read-only.
func (s *State) Clone() State {
	out := *s
	out.Messages = append([]models.Message(nil), s.Messages...)
	out.DomainsCompleted = append([]string(nil), s.DomainsCompleted...)
	out.Recommendations = append([]string(nil), s.Recommendations...)
	out.Errors = append([]models.InvestigationError(nil), s.Errors...)
	out.RoutingDecisions = append([]models.RoutingDecision(nil), s.RoutingDecisions...)
	out.SkippedPhases = append([]Phase(nil), s.SkippedPhases...)
	out.SnowflakeData = append([]map[string]any(nil), s.SnowflakeData...)

	out.ToolsUsed = make(map[string]bool, len(s.ToolsUsed))
	for k, v := range s.ToolsUsed {
		out.ToolsUsed[k] = v
	}
	out.ToolResults = make(map[string]*models.ToolPayload, len(s.ToolResults))
	for k, v := range s.ToolResults {
		out.ToolResults[k] = v
	}
	out.DomainFindings = make(map[string]models.DomainFinding, len(s.DomainFindings))
	for k, v := range s.DomainFindings {
		out.DomainFindings[k] = v
	}
	out.PhaseLoops = make(map[Phase]int, len(s.PhaseLoops))
	for k, v := range s.PhaseLoops {
		out.PhaseLoops[k] = v
	}
	return out
}

// Update is the typed delta a node returns. Merge semantics: last-writer-wins
// for scalars (nil pointer means "unchanged"), union for sets, append for
// sequences, map-merge for tool results and findings.
type Update struct {
	Phase *Phase

	Messages []models.Message

	ToolsUsed   []string
	ToolResults map[string]*models.ToolPayload

	SnowflakeData      []map[string]any
	SnowflakeCompleted *bool

	DomainsCompleted []string
	DomainFindings   map[string]models.DomainFinding

	RiskScore       *float64
	ConfidenceScore *float64
	RiskLevel       *string
	Recommendations []string

	// ToolExecutionAttempts is a delta added to the counter.
	ToolExecutionAttempts int

	Errors        []models.InvestigationError
	SkippedPhases []Phase
}

// Empty reports whether the update carries no changes.
func (u *Update) Empty() bool {
	return u.Phase == nil && len(u.Messages) == 0 && len(u.ToolsUsed) == 0 &&
		len(u.ToolResults) == 0 && len(u.SnowflakeData) == 0 &&
		u.SnowflakeCompleted == nil && len(u.DomainsCompleted) == 0 &&
		len(u.DomainFindings) == 0 && u.RiskScore == nil &&
		u.ConfidenceScore == nil && u.RiskLevel == nil &&
		len(u.Recommendations) == 0 && u.ToolExecutionAttempts == 0 &&
		len(u.Errors) == 0 && len(u.SkippedPhases) == 0
}

// Ptr returns a pointer to v. Helper for building Update literals.
func Ptr[T any](v T) *T { return &v }
