// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	al "github.com/microsoft/agentloop/agentloop"
)

// chatCompletionResponse is the OpenAI Chat Completions API response.
type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Index        int         `json:"index"`
	Message      respMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type respMessage struct {
	Role      string     `json:"role"`
	Content   *string    `json:"content"`
	Refusal   *string    `json:"refusal,omitempty"`
	ToolCalls []toolCall `json:"tool_calls,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// parseChatResponse converts the first choice of an OpenAI response into a
// loop response.
func parseChatResponse(raw *chatCompletionResponse) *al.ChatResponse {
	resp := &al.ChatResponse{
		ResponseID: raw.ID,
		ModelID:    raw.Model,
	}

	if raw.Usage != nil {
		resp.Usage = al.UsageDetails{
			InputTokens:  raw.Usage.PromptTokens,
			OutputTokens: raw.Usage.CompletionTokens,
			TotalTokens:  raw.Usage.TotalTokens,
		}
	}

	c := raw.Choices[0]
	resp.FinishReason = mapFinishReason(c.FinishReason)

	msg := al.Message{Role: al.RoleAssistant}
	switch {
	case c.Message.Content != nil && *c.Message.Content != "":
		msg.Contents = append(msg.Contents, &al.TextContent{Text: *c.Message.Content})
	case c.Message.Refusal != nil && *c.Message.Refusal != "":
		msg.Contents = append(msg.Contents, &al.TextContent{Text: *c.Message.Refusal})
	}

	for _, tc := range c.Message.ToolCalls {
		msg.Contents = append(msg.Contents, &al.FunctionCallContent{
			CallID:    tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	resp.Message = msg
	return resp
}

func mapFinishReason(s string) al.FinishReason {
	switch s {
	case "stop":
		return al.FinishReasonStop
	case "length":
		return al.FinishReasonLength
	case "tool_calls":
		return al.FinishReasonToolCalls
	case "content_filter":
		return al.FinishReasonContentFilter
	default:
		return al.FinishReason(s)
	}
}
