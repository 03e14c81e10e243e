package config

import "time"

// Limits holds every safety ceiling the engine enforces. A single Limits
// value is resolved at startup (live or test policy) and shared read-only by
// the router, the orchestrator and the graph runtime.
type Limits struct {
	// Per-phase loop ceilings.
	SnowflakeLoops     int
	ToolExecutionLoops int
	DomainLoops        int

	// ToolCountCeiling caps the number of distinct tools used during
	// tool_execution before forced progression.
	ToolCountCeiling int

	// ToolAttemptsTrigger forces progression out of tool_execution once the
	// attempt counter reaches it.
	ToolAttemptsTrigger int

	// OrchestratorCalls is the global ceiling on orchestrator invocations.
	OrchestratorCalls int

	// RecursionBudget bounds orchestrator turns per investigation, set to the
	// orchestrator ceiling plus margin as a backstop.
	RecursionBudget int

	// WallClock bounds the total investigation duration. DeadlockWarnAt is the
	// fraction of WallClock after which a warning is logged.
	WallClock      time.Duration
	DeadlockWarnAt float64

	// LLMTimeout bounds a single LLM call. PerToolTimeout bounds a single
	// tool invocation.
	LLMTimeout     time.Duration
	PerToolTimeout time.Duration

	// Temperature is fixed for every orchestrator LLM call.
	Temperature float64

	// MaxCustomPromptLen bounds the sanitised user prompt.
	MaxCustomPromptLen int
}

// LiveLimits returns the production ceiling policy.
func LiveLimits() Limits {
	return Limits{
		SnowflakeLoops:      8,
		ToolExecutionLoops:  10,
		DomainLoops:         35,
		ToolCountCeiling:    10,
		ToolAttemptsTrigger: 4,
		OrchestratorCalls:   55,
		RecursionBudget:     70,
		WallClock:           180 * time.Second,
		DeadlockWarnAt:      0.8,
		LLMTimeout:          90 * time.Second,
		PerToolTimeout:      30 * time.Second,
		Temperature:         0.3,
		MaxCustomPromptLen:  500,
	}
}

// TestLimits returns the tightened test-mode policy. Every ceiling shrinks so
// runaway behaviour is caught quickly under test.
func TestLimits() Limits {
	return Limits{
		SnowflakeLoops:      6,
		ToolExecutionLoops:  8,
		DomainLoops:         30,
		ToolCountCeiling:    8,
		ToolAttemptsTrigger: 4,
		OrchestratorCalls:   45,
		RecursionBudget:     60,
		WallClock:           60 * time.Second,
		DeadlockWarnAt:      0.8,
		LLMTimeout:          15 * time.Second,
		PerToolTimeout:      5 * time.Second,
		Temperature:         0.3,
		MaxCustomPromptLen:  500,
	}
}

// ResolveLimits picks the ceiling policy for the given mode.
func ResolveLimits(testMode bool) Limits {
	if testMode {
		return TestLimits()
	}
	return LiveLimits()
}
