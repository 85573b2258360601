// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"context"
	"strings"
)

// ChatClient is the interface for interacting with a model backend.
// Provider packages (e.g., openai, anthropic) implement this interface.
//
// Retry policy, if any, belongs to the client; the loop calls Complete once
// per round and treats any error as fatal for the run.
type ChatClient interface {
	// Complete sends the request to the model and returns its reply.
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ChatClientFunc adapts an ordinary function to the [ChatClient] interface.
type ChatClientFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

// Complete calls f(ctx, req).
func (f ChatClientFunc) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return f(ctx, req)
}

// ChatRequest is one backend call: the system prompt, the full history and
// the tools the model may ask for. Tools is empty when no tools are
// registered, in which case the model must not be offered tool calling.
type ChatRequest struct {
	Instructions string
	Messages     []Message
	Tools        []ToolDeclaration
	Options      *ChatOptions
}

// ChatResponse is the complete reply from a [ChatClient].
type ChatResponse struct {
	Message      Message
	ResponseID   string
	ModelID      string
	FinishReason FinishReason
	Usage        UsageDetails

	// Raw holds the original provider-specific representation, if any.
	Raw any
}

// Text returns the reply text.
func (r *ChatResponse) Text() string {
	return r.Message.Text()
}

// RunResult is the outcome of one [Agent.Run].
type RunResult struct {
	// Text is the final answer, or a bounded-failure notice when the round
	// budget ran out.
	Text string

	// Messages holds only the messages appended during this run, starting
	// with the user message.
	Messages []Message

	// History is the full conversation: prior history followed by Messages.
	History []Message

	AgentID    string
	Rounds     int
	ToolCalls  int
	StopReason StopReason
	Usage      UsageDetails

	// Err is [ErrMaxRounds] (wrapped) when StopReason is
	// [StopReasonMaxRounds], nil otherwise.
	Err error
}

// ToolResults returns the tool-result contents appended during the run.
func (r *RunResult) ToolResults() []*FunctionResultContent {
	var out []*FunctionResultContent
	for i := range r.Messages {
		if fr := r.Messages[i].ToolResult(); fr != nil {
			out = append(out, fr)
		}
	}
	return out
}

// Transcript renders the new messages of the run, one per line. Useful for
// logs and debugging.
func (r *RunResult) Transcript() string {
	var b strings.Builder
	for i := range r.Messages {
		m := &r.Messages[i]
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		switch m.Role {
		case RoleTool:
			if fr := m.ToolResult(); fr != nil {
				b.WriteString("[" + fr.CallID + "] " + fr.Result)
			}
		default:
			b.WriteString(m.Text())
			for _, c := range m.ToolCalls() {
				b.WriteString(" -> " + c.Name + "(" + c.Arguments + ")#" + c.CallID)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
