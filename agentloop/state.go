// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"context"
	"time"
)

// State is a position in the loop state machine.
type State int

const (
	StateAwaitingDecision State = iota
	StateAwaitingToolResults
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingDecision:
		return "awaiting_decision"
	case StateAwaitingToolResults:
		return "awaiting_tool_results"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// StopReason says why a run reached [StateDone].
type StopReason string

const (
	// StopReasonCompleted means the model produced a final answer.
	StopReasonCompleted StopReason = "completed"

	// StopReasonMaxRounds means the round budget ran out first.
	StopReasonMaxRounds StopReason = "max_rounds"
)

// Transition describes one state change, reported to a [StateObserver].
type Transition struct {
	From State
	To   State

	// Round is the number of decision steps taken so far.
	Round int

	// HistoryLen is the conversation length after the step that caused the
	// transition.
	HistoryLen int
}

// StateObserver is notified of every transition of a run, synchronously and
// in order.
type StateObserver func(ctx context.Context, t Transition)

// InvocationConfig controls the loop behavior.
type InvocationConfig struct {
	// MaxRounds is the maximum number of decision steps per run. Default: 10.
	MaxRounds int

	// MaxConcurrency bounds parallel tool calls within one batch.
	// Zero runs the whole batch in parallel; 1 runs it sequentially.
	MaxConcurrency int

	// ToolTimeout bounds each tool invocation. Zero means no deadline beyond
	// the run's context. Tools created with [WithTimeout] override it.
	ToolTimeout time.Duration

	// DecisionTimeout bounds each backend call. Zero means no deadline beyond
	// the run's context.
	DecisionTimeout time.Duration

	// IncludeDetailedErrors includes full error text in tool results sent
	// back to the model. When false, a generic error message is used.
	IncludeDetailedErrors bool
}

// DefaultMaxRounds is the round budget used when none is configured.
const DefaultMaxRounds = 10

// DefaultInvocationConfig returns the default configuration.
func DefaultInvocationConfig() InvocationConfig {
	return InvocationConfig{
		MaxRounds:             DefaultMaxRounds,
		IncludeDetailedErrors: true,
	}
}

func (c InvocationConfig) withDefaults() InvocationConfig {
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	return c
}
