// Copyright (c) Microsoft. All rights reserved.

package agentloop

import "strings"

// Role identifies the author of a [Message].
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// Message is a single entry in a conversation.
//
// A user message carries text. An assistant message carries optional text and
// zero or more [FunctionCallContent] requests. A tool message carries exactly
// one [FunctionResultContent].
type Message struct {
	Role       Role     `json:"role"`
	Contents   Contents `json:"contents,omitempty"`
	AuthorName string   `json:"authorName,omitempty"`
	MessageID  string   `json:"messageId,omitempty"`
}

// Text returns the concatenated text of all [TextContent] items in this message.
func (m *Message) Text() string {
	var b strings.Builder
	for _, c := range m.Contents {
		if tc, ok := c.(*TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// ToolCalls returns the function calls requested by this message, in order.
func (m *Message) ToolCalls() []*FunctionCallContent {
	var calls []*FunctionCallContent
	for _, c := range m.Contents {
		if fc, ok := c.(*FunctionCallContent); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

// ToolResult returns the function result carried by a tool message, or nil.
func (m *Message) ToolResult() *FunctionResultContent {
	for _, c := range m.Contents {
		if fr, ok := c.(*FunctionResultContent); ok {
			return fr
		}
	}
	return nil
}

// NewUserMessage creates a user-role [Message] from a text string.
func NewUserMessage(text string) Message {
	return Message{
		Role:     RoleUser,
		Contents: Contents{&TextContent{Text: text}},
	}
}

// NewAssistantMessage creates an assistant-role [Message] from a text string.
func NewAssistantMessage(text string) Message {
	return Message{
		Role:     RoleAssistant,
		Contents: Contents{&TextContent{Text: text}},
	}
}

// NewToolCallMessage creates an assistant-role [Message] requesting the given
// calls, with optional leading text.
func NewToolCallMessage(text string, calls ...*FunctionCallContent) Message {
	m := Message{Role: RoleAssistant}
	if text != "" {
		m.Contents = append(m.Contents, &TextContent{Text: text})
	}
	for _, c := range calls {
		m.Contents = append(m.Contents, c)
	}
	return m
}

// NewSystemMessage creates a system-role [Message] from a text string.
func NewSystemMessage(text string) Message {
	return Message{
		Role:     RoleSystem,
		Contents: Contents{&TextContent{Text: text}},
	}
}

// NewToolMessage creates a tool-role [Message] answering callID with text.
func NewToolMessage(callID, result string) Message {
	return Message{
		Role: RoleTool,
		Contents: Contents{&FunctionResultContent{
			CallID: callID,
			Result: result,
		}},
	}
}

// PrependInstructions inserts a system message at the beginning of the message
// list if instructions are non-empty and no system message already exists.
// The input slice is never modified.
func PrependInstructions(messages []Message, instructions string) []Message {
	if instructions == "" {
		return messages
	}
	for _, m := range messages {
		if m.Role == RoleSystem {
			return messages
		}
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, NewSystemMessage(instructions))
	return append(out, messages...)
}

func cloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
