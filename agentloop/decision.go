// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Decision is the outcome of one decision step: either a [*FinalAnswer] or a
// [*ToolRequest]. The set of variants is closed.
type Decision interface {
	// Reply returns the assistant message to append to the conversation.
	Reply() Message

	// Response returns the backend response the decision was made from.
	Response() *ChatResponse

	decision()
}

// FinalAnswer ends the run with Text.
type FinalAnswer struct {
	Text     string
	message  Message
	response *ChatResponse
}

func (d *FinalAnswer) Reply() Message          { return d.message }
func (d *FinalAnswer) Response() *ChatResponse { return d.response }
func (*FinalAnswer) decision()                 {}

// ToolRequest asks for one or more tool calls before the model continues.
type ToolRequest struct {
	Calls    []*FunctionCallContent
	message  Message
	response *ChatResponse
}

func (d *ToolRequest) Reply() Message          { return d.message }
func (d *ToolRequest) Response() *ChatResponse { return d.response }
func (*ToolRequest) decision()                 {}

// decisionInput is everything one decision step needs.
type decisionInput struct {
	instructions string
	history      []Message
	registry     *Registry
	options      *ChatOptions
	timeout      time.Duration
}

// decide calls the backend once and classifies its reply. It has no side
// effects beyond the call itself.
func decide(ctx context.Context, chat ChatHandler, in decisionInput) (Decision, error) {
	if len(in.history) == 0 {
		return nil, ErrEmptyHistory
	}

	req := &ChatRequest{
		Instructions: in.instructions,
		Messages:     in.history,
		Options:      in.options.Clone(),
	}
	if in.registry.Len() > 0 {
		req.Tools = in.registry.Declarations()
	} else if req.Options != nil {
		req.Options.ToolChoice = ""
	}

	if in.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.timeout)
		defer cancel()
	}

	resp, err := chat(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", ErrInvalidResponse)
	}
	return classify(resp)
}

// classify turns a backend reply into a decision. Calls with a missing or
// repeated id get a fresh one so every result can be correlated; a call
// without a name is rejected.
func classify(resp *ChatResponse) (Decision, error) {
	raw := resp.Message
	msg := Message{
		Role:       RoleAssistant,
		AuthorName: raw.AuthorName,
		MessageID:  raw.MessageID,
	}

	var calls []*FunctionCallContent
	seen := make(map[string]struct{})
	for _, c := range raw.Contents {
		switch v := c.(type) {
		case *TextContent:
			msg.Contents = append(msg.Contents, &TextContent{Text: v.Text})
		case *FunctionCallContent:
			if strings.TrimSpace(v.Name) == "" {
				return nil, fmt.Errorf("%w: tool call without a name", ErrInvalidResponse)
			}
			call := &FunctionCallContent{CallID: v.CallID, Name: v.Name, Arguments: v.Arguments}
			if _, dup := seen[call.CallID]; call.CallID == "" || dup {
				call.CallID = "call_" + newID()
			}
			seen[call.CallID] = struct{}{}
			calls = append(calls, call)
			msg.Contents = append(msg.Contents, call)
		}
	}

	if len(calls) > 0 {
		return &ToolRequest{Calls: calls, message: msg, response: resp}, nil
	}

	text := msg.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: reply has neither text nor tool calls", ErrInvalidResponse)
	}
	return &FinalAnswer{Text: text, message: msg, response: resp}, nil
}
