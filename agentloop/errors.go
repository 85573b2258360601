// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrAgent is the base error for agent-related failures.
	ErrAgent = errors.New("agent error")

	// ErrExecution indicates a runtime failure during a loop run.
	ErrExecution = fmt.Errorf("%w: execution", ErrAgent)

	// ErrInitialization indicates an agent configuration or setup failure.
	ErrInitialization = fmt.Errorf("%w: initialization", ErrAgent)

	// ErrEmptyHistory is returned when a decision is requested without any messages.
	ErrEmptyHistory = fmt.Errorf("%w: empty history", ErrAgent)

	// ErrConversation indicates a violation of the append-only conversation rules.
	ErrConversation = fmt.Errorf("%w: conversation", ErrAgent)

	// ErrSession indicates a session lifecycle failure.
	ErrSession = fmt.Errorf("%w: session", ErrAgent)

	// ErrSessionBusy is returned when a session is already used by another run.
	ErrSessionBusy = fmt.Errorf("%w: busy", ErrSession)

	// ErrMaxRounds marks a run that exhausted its round budget. It is reported
	// through [RunResult.Err], never returned by Run.
	ErrMaxRounds = fmt.Errorf("%w: max iterations exceeded", ErrAgent)

	// ErrService is the base error for backend service failures.
	ErrService = errors.New("service error")

	// ErrContentFilter indicates the request was rejected by a content filter.
	ErrContentFilter = fmt.Errorf("%w: content filter", ErrService)

	// ErrInvalidRequest indicates the request was malformed or invalid.
	ErrInvalidRequest = fmt.Errorf("%w: invalid request", ErrService)

	// ErrInvalidResponse indicates the service returned an unexpected response.
	ErrInvalidResponse = fmt.Errorf("%w: invalid response", ErrService)

	// ErrAuth indicates an authentication or authorization failure.
	ErrAuth = fmt.Errorf("%w: authentication", ErrService)

	// ErrRateLimited indicates the service refused the request for quota reasons.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrService)

	// ErrTool is the base error for tool-related failures.
	ErrTool = errors.New("tool error")

	// ErrToolNotFound indicates the model asked for a tool that is not registered.
	ErrToolNotFound = fmt.Errorf("%w: not found", ErrTool)

	// ErrToolExecution indicates a failure during tool invocation.
	ErrToolExecution = fmt.Errorf("%w: execution", ErrTool)

	// ErrInvalidArguments indicates tool arguments could not be decoded.
	ErrInvalidArguments = fmt.Errorf("%w: invalid arguments", ErrTool)

	// ErrToolTimeout indicates a tool did not finish within its deadline.
	ErrToolTimeout = fmt.Errorf("%w: timeout", ErrTool)

	// ErrDuplicateTool is returned when two tools share a name in one registry.
	ErrDuplicateTool = fmt.Errorf("%w: duplicate name", ErrTool)
)

// ServiceError provides rich context for backend service failures.
// Use errors.As to extract it from a wrapped error chain.
type ServiceError struct {
	StatusCode int
	Message    string
	Code       string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("service error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("service error %d: %s", e.StatusCode, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ToolError provides context for tool invocation failures.
type ToolError struct {
	ToolName string
	Message  string
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %s", e.ToolName, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }
