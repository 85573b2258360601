// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"context"
	"encoding/json"
	"time"
)

// Tool defines a callable function that can be exposed to a model.
// Implementations must be safe for concurrent use: one registry is shared by
// every run and calls within a batch may execute in parallel.
type Tool interface {
	// Name returns the function name as exposed to the model. It must be
	// unique within a [Registry].
	Name() string

	// Description returns a human-readable description for the model.
	Description() string

	// Parameters returns the JSON Schema describing the function's input.
	Parameters() json.RawMessage

	// Invoke calls the function with the given JSON arguments. The result is
	// rendered to text before the model sees it.
	Invoke(ctx context.Context, args json.RawMessage) (any, error)
}

// FunctionTool is a concrete [Tool] backed by a Go function.
type FunctionTool struct {
	name        string
	description string
	parameters  json.RawMessage
	fn          func(ctx context.Context, args json.RawMessage) (any, error)
	timeout     time.Duration
}

// ToolOption configures a [FunctionTool].
type ToolOption func(*FunctionTool)

// WithTimeout bounds a single invocation of the tool. It overrides the
// agent-wide tool timeout.
func WithTimeout(d time.Duration) ToolOption {
	return func(t *FunctionTool) { t.timeout = d }
}

// NewTool creates a [FunctionTool] with raw JSON schema and handler.
func NewTool(name, description string, parameters json.RawMessage, fn func(ctx context.Context, args json.RawMessage) (any, error), opts ...ToolOption) *FunctionTool {
	if len(parameters) == 0 {
		parameters = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	t := &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewTypedTool creates a [FunctionTool] that generates JSON Schema from the
// Args type parameter and decodes arguments into it.
//
// Args should be a struct with json tags. Fields without omitempty are
// required. Use jsonschema tags for additional schema metadata:
//
//	type QuoteArgs struct {
//	    Ticker string `json:"ticker" jsonschema_description:"Ticker symbol, e.g. AAPL"`
//	    Unit   string `json:"unit,omitempty" jsonschema:"enum=BRL,enum=USD"`
//	}
func NewTypedTool[Args any](name, description string, fn func(ctx context.Context, args Args) (any, error), opts ...ToolOption) *FunctionTool {
	schema := GenerateSchema[Args]()

	wrapped := func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args Args
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, &ToolError{
					ToolName: name,
					Message:  "invalid arguments: " + err.Error(),
					Err:      ErrInvalidArguments,
				}
			}
		}
		return fn(ctx, args)
	}

	return NewTool(name, description, schema, wrapped, opts...)
}

func (t *FunctionTool) Name() string                { return t.name }
func (t *FunctionTool) Description() string         { return t.description }
func (t *FunctionTool) Parameters() json.RawMessage { return t.parameters }

// Timeout returns the per-invocation deadline, or zero for the agent default.
func (t *FunctionTool) Timeout() time.Duration { return t.timeout }

// Invoke calls the tool's backing function.
func (t *FunctionTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	if t.fn == nil {
		return nil, &ToolError{
			ToolName: t.name,
			Message:  "tool has no implementation",
			Err:      ErrToolExecution,
		}
	}
	return t.fn(ctx, args)
}

// ToolDeclaration is what a backend needs to offer a tool to the model.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// timeoutTool is implemented by tools that carry their own deadline.
type timeoutTool interface {
	Timeout() time.Duration
}
