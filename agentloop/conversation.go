// Copyright (c) Microsoft. All rights reserved.

package agentloop

import "fmt"

// Conversation is the append-only message log of one run. It is owned by a
// single run; only read accessors are exported.
type Conversation struct {
	messages []Message

	// pending holds the call ids of the last assistant message that still
	// need a tool result.
	pending map[string]struct{}
}

// newConversation starts a log from a private copy of prior.
func newConversation(prior []Message) *Conversation {
	c := &Conversation{messages: make([]Message, 0, len(prior)+4)}
	c.messages = append(c.messages, prior...)
	return c
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// Messages returns a snapshot of the log. Later appends do not affect it.
func (c *Conversation) Messages() []Message {
	return cloneMessages(c.messages)
}

// Pending reports how many tool calls are still unanswered.
func (c *Conversation) Pending() int { return len(c.pending) }

func (c *Conversation) append(m Message) {
	if m.MessageID == "" {
		m.MessageID = newID()
	}
	c.messages = append(c.messages, m)
}

func (c *Conversation) appendUser(text string) error {
	if len(c.pending) > 0 {
		return fmt.Errorf("%w: user message while %d tool calls are unanswered", ErrConversation, len(c.pending))
	}
	c.append(NewUserMessage(text))
	return nil
}

// appendAssistant records a model reply and opens its tool calls.
func (c *Conversation) appendAssistant(m Message) error {
	if len(c.pending) > 0 {
		return fmt.Errorf("%w: assistant message while %d tool calls are unanswered", ErrConversation, len(c.pending))
	}
	calls := m.ToolCalls()
	if len(calls) > 0 {
		c.pending = make(map[string]struct{}, len(calls))
		for _, call := range calls {
			c.pending[call.CallID] = struct{}{}
		}
	}
	c.append(m)
	return nil
}

// appendToolResults records one result per open call. The batch is checked as
// a whole first, so a bad batch leaves the log untouched.
func (c *Conversation) appendToolResults(results []Message) error {
	if len(results) != len(c.pending) {
		return fmt.Errorf("%w: %d tool results for %d open calls", ErrConversation, len(results), len(c.pending))
	}
	seen := make(map[string]struct{}, len(results))
	for _, m := range results {
		fr := m.ToolResult()
		if m.Role != RoleTool || fr == nil {
			return fmt.Errorf("%w: tool result batch contains a %s message", ErrConversation, m.Role)
		}
		if _, open := c.pending[fr.CallID]; !open {
			return fmt.Errorf("%w: tool result for unknown call %q", ErrConversation, fr.CallID)
		}
		if _, dup := seen[fr.CallID]; dup {
			return fmt.Errorf("%w: duplicate tool result for call %q", ErrConversation, fr.CallID)
		}
		seen[fr.CallID] = struct{}{}
	}
	for _, m := range results {
		c.append(m)
	}
	c.pending = nil
	return nil
}
