// Package graph is the investigation core: the state record and its store,
// the phase machine, the router that picks the next node, and the runtime
// that drives the loop under recursion and wall-clock budgets.
package graph

import "fmt"

// Phase is one coarse investigation stage.
type Phase string

const (
	PhaseInitialization Phase = "initialization"
	PhaseSnowflake      Phase = "snowflake_analysis"
	PhaseToolExecution  Phase = "tool_execution"
	PhaseDomainAnalysis Phase = "domain_analysis"
	PhaseSummary        Phase = "summary"
	PhaseComplete       Phase = "complete"
)

// phaseOrder fixes the forward progression. Transitions may skip ahead
// (forced summary) but never move backward.
var phaseOrder = map[Phase]int{
	PhaseInitialization: 0,
	PhaseSnowflake:      1,
	PhaseToolExecution:  2,
	PhaseDomainAnalysis: 3,
	PhaseSummary:        4,
	PhaseComplete:       5,
}

// Index returns the position of the phase in the progression, or -1 for an
// unknown phase.
func (p Phase) Index() int {
	idx, ok := phaseOrder[p]
	if !ok {
		return -1
	}
	return idx
}

// PhasesBetween lists the phases strictly after from and strictly before to.
// Used to flag skipped phases when an investigation is forced to summary.
func PhasesBetween(from, to Phase) []Phase {
	ordered := []Phase{
		PhaseInitialization, PhaseSnowflake, PhaseToolExecution,
		PhaseDomainAnalysis, PhaseSummary, PhaseComplete,
	}
	var out []Phase
	for _, p := range ordered {
		if p.Index() > from.Index() && p.Index() < to.Index() {
			out = append(out, p)
		}
	}
	return out
}

// CheckTransition validates a phase transition against the machine: forward
// only, and entry guards on tool_execution and domain_analysis. A forced jump
// to summary is always legal from any non-terminal phase.
func CheckTransition(st *State, from, to Phase) error {
	if from == PhaseComplete {
		return fmt.Errorf("phase %s is terminal", from)
	}
	if to.Index() < 0 {
		return fmt.Errorf("unknown phase %q", to)
	}
	if to.Index() <= from.Index() {
		return fmt.Errorf("backward transition %s -> %s is forbidden", from, to)
	}
	switch to {
	case PhaseToolExecution:
		if !st.SnowflakeCompleted {
			return fmt.Errorf("cannot enter %s: warehouse analysis not completed", to)
		}
	case PhaseDomainAnalysis:
		if st.ToolExecutionAttempts < 1 {
			return fmt.Errorf("cannot enter %s: no tool execution attempts recorded", to)
		}
	case PhaseComplete:
		if from != PhaseSummary {
			return fmt.Errorf("only %s may transition to %s", PhaseSummary, PhaseComplete)
		}
	}
	return nil
}

// DomainOrder is the fixed execution order of the required domain agents.
var DomainOrder = []string{
	"network", "device", "location", "logs",
	"authentication", "web", "merchant", "risk",
}

// DomainRemediation runs after risk when any labelled risk crosses the
// remediation threshold.
const DomainRemediation = "remediation"

// RemediationThreshold is the minimum domain risk score that triggers the
// remediation agent.
const RemediationThreshold = 0.3
