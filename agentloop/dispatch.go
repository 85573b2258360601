// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// ToolResult is the structured outcome of one tool call. Exactly one of Value
// and Err is meaningful.
type ToolResult struct {
	CallID   string
	Name     string
	Value    any
	Err      error
	Duration time.Duration
}

// OK reports whether the call succeeded.
func (r ToolResult) OK() bool { return r.Err == nil }

// Text renders the result for the model. Failures render as "error: ...";
// with detailed false the error detail is hidden, except for unknown tools
// so the model can pick another one.
func (r ToolResult) Text(detailed bool) string {
	if r.Err != nil {
		if detailed || errors.Is(r.Err, ErrToolNotFound) {
			return "error: " + r.Err.Error()
		}
		return fmt.Sprintf("error: tool %q failed", r.Name)
	}
	return renderValue(r.Value)
}

// Message renders the result as a tool-role message.
func (r ToolResult) Message(detailed bool) Message {
	return Message{
		Role: RoleTool,
		Contents: Contents{&FunctionResultContent{
			CallID:  r.CallID,
			Name:    r.Name,
			Result:  r.Text(detailed),
			IsError: r.Err != nil,
		}},
	}
}

func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case json.RawMessage:
		return string(x)
	case fmt.Stringer:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Dispatch runs every call against reg and returns one result per call, in
// call order. Calls run concurrently, at most cfg.MaxConcurrency at a time
// (all at once when zero). Dispatch returns only after every call finished
// or timed out.
//
// Failures are never returned as errors: an unknown tool, malformed
// arguments, a tool error, a panic or a timeout each become a failed
// [ToolResult] without affecting the other calls.
func Dispatch(ctx context.Context, reg *Registry, calls []*FunctionCallContent, cfg InvocationConfig, mws ...FunctionMiddleware) []ToolResult {
	if len(calls) == 0 {
		return nil
	}
	results := make([]ToolResult, len(calls))

	limit := cfg.MaxConcurrency
	if limit <= 0 || limit > len(calls) {
		limit = len(calls)
	}

	handler := chainFunctionMiddleware(func(ctx context.Context, t Tool, args json.RawMessage) (any, error) {
		return t.Invoke(ctx, args)
	}, mws...)

	// A plain group: one failing call must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(limit)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = invokeCall(ctx, reg, call, cfg.ToolTimeout, handler)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func invokeCall(ctx context.Context, reg *Registry, call *FunctionCallContent, defaultTimeout time.Duration, handler FunctionHandler) ToolResult {
	start := time.Now()
	res := ToolResult{CallID: call.CallID, Name: call.Name}
	defer func() {
		if res.Err != nil {
			slog.WarnContext(ctx, "tool call failed",
				"tool", call.Name,
				"call_id", call.CallID,
				"error", res.Err,
			)
		}
	}()

	tool, ok := reg.Lookup(call.Name)
	if !ok {
		res.Err = &ToolError{ToolName: call.Name, Message: "not found in registry", Err: ErrToolNotFound}
		return res
	}

	args := strings.TrimSpace(call.Arguments)
	if args == "" {
		args = "{}"
	}
	if !gjson.Valid(args) {
		res.Err = &ToolError{ToolName: call.Name, Message: "invalid arguments: not valid JSON", Err: ErrInvalidArguments}
		return res
	}

	timeout := defaultTimeout
	if tt, ok := tool.(timeoutTool); ok && tt.Timeout() > 0 {
		timeout = tt.Timeout()
	}

	res.Value, res.Err = runTool(ctx, tool, json.RawMessage(args), timeout, handler)
	res.Duration = time.Since(start)
	slog.DebugContext(ctx, "tool call finished",
		"tool", call.Name,
		"call_id", call.CallID,
		"duration", res.Duration,
		"ok", res.Err == nil,
	)
	return res
}

type toolOutcome struct {
	value any
	err   error
}

// runTool waits for the tool or its deadline, whichever comes first. A tool
// that ignores ctx keeps running in the background; its late result is dropped.
func runTool(ctx context.Context, tool Tool, args json.RawMessage, timeout time.Duration, handler FunctionHandler) (any, error) {
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan toolOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- toolOutcome{err: &ToolError{
					ToolName: tool.Name(),
					Message:  fmt.Sprintf("panic: %v", r),
					Err:      ErrToolExecution,
				}}
			}
		}()
		v, err := handler(callCtx, tool, args)
		done <- toolOutcome{value: v, err: err}
	}()

	return awaitOutcome(callCtx, tool.Name(), done)
}

// awaitOutcome returns the tool's outcome, or a cancellation error once
// callCtx is done. An outcome that is already available wins over the
// cancellation.
func awaitOutcome(callCtx context.Context, name string, done <-chan toolOutcome) (any, error) {
	var out toolOutcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		select {
		case out = <-done:
		default:
			return nil, asToolError(name, callCtx, callCtx.Err())
		}
	}
	if out.err != nil {
		return nil, asToolError(name, callCtx, out.err)
	}
	return out.value, nil
}

func asToolError(name string, callCtx context.Context, err error) error {
	var te *ToolError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &ToolError{ToolName: name, Message: "timed out", Err: ErrToolTimeout}
	}
	return &ToolError{ToolName: name, Message: err.Error(), Err: fmt.Errorf("%w: %w", ErrToolExecution, err)}
}
