package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nsure-ai/inquest/pkg/models"
)

// Journal receives append-only notifications of state mutations. The store
// calls it best-effort: journal failures are logged, never propagated into
// the investigation.
type Journal interface {
	InvestigationStarted(ctx context.Context, st State) error
	MessageAppended(ctx context.Context, investigationID string, seq int, msg models.Message) error
	RoutingRecorded(ctx context.Context, investigationID string, dec models.RoutingDecision) error
	InvestigationFinished(ctx context.Context, st State) error
}

// NopJournal discards all notifications. Used when persistence is disabled.
type NopJournal struct{}

func (NopJournal) InvestigationStarted(context.Context, State) error { return nil }
func (NopJournal) MessageAppended(context.Context, string, int, models.Message) error {
	return nil
}
func (NopJournal) RoutingRecorded(context.Context, string, models.RoutingDecision) error {
	return nil
}
func (NopJournal) InvestigationFinished(context.Context, State) error { return nil }

// Store owns one investigation's state. Single writer (the runtime),
// concurrent readers via Snapshot.
type Store struct {
	mu      sync.RWMutex
	state   *State
	journal Journal
	logger  *slog.Logger
}

// NewStore wraps the initial state. journal may be nil.
func NewStore(st *State, journal Journal) *Store {
	if journal == nil {
		journal = NopJournal{}
	}
	return &Store{
		state:   st,
		journal: journal,
		logger:  slog.With("investigation_id", st.InvestigationID),
	}
}

// Snapshot returns a copy safe for concurrent reads.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Apply merges an update into the state and returns the resulting snapshot.
// Terminal states accept no mutation except timing finalisation (see
// Finalize).
func (s *Store) Apply(u Update) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state
	if st.CurrentPhase == PhaseComplete && !u.Empty() {
		return st.Clone(), fmt.Errorf("investigation %s is complete: no further mutation", st.InvestigationID)
	}

	if u.Phase != nil && *u.Phase != st.CurrentPhase {
		if err := CheckTransition(st, st.CurrentPhase, *u.Phase); err != nil {
			return st.Clone(), err
		}
		st.CurrentPhase = *u.Phase
	}

	for _, msg := range u.Messages {
		st.Messages = append(st.Messages, msg)
		s.notifyMessage(len(st.Messages)-1, msg)
	}
	for _, name := range u.ToolsUsed {
		st.ToolsUsed[name] = true
	}
	for name, payload := range u.ToolResults {
		st.ToolResults[name] = payload
	}
	if u.SnowflakeData != nil {
		st.SnowflakeData = u.SnowflakeData
	}
	if u.SnowflakeCompleted != nil {
		st.SnowflakeCompleted = *u.SnowflakeCompleted
	}
	for _, d := range u.DomainsCompleted {
		if !st.DomainCompleted(d) {
			st.DomainsCompleted = append(st.DomainsCompleted, d)
		}
	}
	for name, finding := range u.DomainFindings {
		st.DomainFindings[name] = finding
	}
	if u.RiskScore != nil {
		st.RiskScore = models.Clamp01(*u.RiskScore)
	}
	if u.ConfidenceScore != nil {
		st.ConfidenceScore = models.Clamp01(*u.ConfidenceScore)
	}
	if u.RiskLevel != nil {
		st.RiskLevel = *u.RiskLevel
	}
	st.Recommendations = append(st.Recommendations, u.Recommendations...)
	st.ToolExecutionAttempts += u.ToolExecutionAttempts
	st.Errors = append(st.Errors, u.Errors...)
	for _, p := range u.SkippedPhases {
		st.SkippedPhases = append(st.SkippedPhases, p)
	}

	return st.Clone(), nil
}

// AppendMessage appends a single message.
func (s *Store) AppendMessage(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Messages = append(s.state.Messages, msg)
	s.notifyMessage(len(s.state.Messages)-1, msg)
}

// RecordToolResult records the latest parsed result for a tool and marks it
// used. Recording an identical latest value is a no-op by construction
// (map overwrite, set insert).
func (s *Store) RecordToolResult(name string, payload *models.ToolPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ToolsUsed[name] = true
	s.state.ToolResults[name] = payload
}

// MarkDomainComplete records a finding and adds the domain to the completed
// set. A domain completes at most once; repeats are ignored.
func (s *Store) MarkDomainComplete(name string, finding models.DomainFinding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.DomainCompleted(name) {
		return
	}
	finding.Clamp()
	s.state.DomainsCompleted = append(s.state.DomainsCompleted, name)
	s.state.DomainFindings[name] = finding
}

// Counter names accepted by IncrementCounter.
const (
	CounterOrchestratorLoops = "orchestrator_loops"
	CounterToolAttempts      = "tool_execution_attempts"
)

// IncrementCounter bumps a monotonic counter and returns the new value.
// Orchestrator loops also bump the per-phase loop count.
func (s *Store) IncrementCounter(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case CounterOrchestratorLoops:
		s.state.OrchestratorLoops++
		s.state.PhaseLoops[s.state.CurrentPhase]++
		return s.state.OrchestratorLoops
	case CounterToolAttempts:
		s.state.ToolExecutionAttempts++
		return s.state.ToolExecutionAttempts
	default:
		s.logger.Error("Unknown counter", "name", name)
		return 0
	}
}

// AppendError records an investigation error.
func (s *Store) AppendError(e models.InvestigationError) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Phase == "" {
		e.Phase = string(s.state.CurrentPhase)
	}
	s.state.Errors = append(s.state.Errors, e)
}

// AppendRouting records a router verdict in the audit trail.
func (s *Store) AppendRouting(dec models.RoutingDecision) {
	s.mu.Lock()
	s.state.RoutingDecisions = append(s.state.RoutingDecisions, dec)
	id := s.state.InvestigationID
	s.mu.Unlock()

	if err := s.journal.RoutingRecorded(context.Background(), id, dec); err != nil {
		s.logger.Warn("Journal routing write failed", "error", err)
	}
}

// Start stamps the start time and notifies the journal.
func (s *Store) Start() {
	s.mu.Lock()
	s.state.StartTime = time.Now().UTC()
	snap := s.state.Clone()
	s.mu.Unlock()

	if err := s.journal.InvestigationStarted(context.Background(), snap); err != nil {
		s.logger.Warn("Journal start write failed", "error", err)
	}
}

// Finalize stamps the terminal phase and timings. Allowed even when the
// phase is already complete (timing finalisation only).
func (s *Store) Finalize() State {
	s.mu.Lock()
	s.state.CurrentPhase = PhaseComplete
	s.state.EndTime = time.Now().UTC()
	if !s.state.StartTime.IsZero() {
		s.state.TotalDurationMS = s.state.EndTime.Sub(s.state.StartTime).Milliseconds()
	}
	snap := s.state.Clone()
	s.mu.Unlock()

	if err := s.journal.InvestigationFinished(context.Background(), snap); err != nil {
		s.logger.Warn("Journal finish write failed", "error", err)
	}
	return snap
}

// ForcePhase sets the phase without transition checks. Reserved for the
// runtime's safety terminations (forced summary).
func (s *Store) ForcePhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentPhase.Index() < p.Index() {
		skipped := PhasesBetween(s.state.CurrentPhase, p)
		s.state.SkippedPhases = append(s.state.SkippedPhases, skipped...)
		s.state.CurrentPhase = p
	}
}

// notifyMessage is called with the store lock held; journal writes are
// fire-and-forget.
func (s *Store) notifyMessage(seq int, msg models.Message) {
	id := s.state.InvestigationID
	go func() {
		if err := s.journal.MessageAppended(context.Background(), id, seq, msg); err != nil {
			s.logger.Warn("Journal message write failed", "seq", seq, "error", err)
		}
	}()
}
