// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"encoding/json"

	al "github.com/microsoft/agentloop/agentloop"
)

// chatRequest is the OpenAI Chat Completions API request body.
type chatRequest struct {
	Model            string            `json:"model,omitempty"`
	Messages         []chatMessage     `json:"messages"`
	Temperature      *float64          `json:"temperature,omitempty"`
	TopP             *float64          `json:"top_p,omitempty"`
	MaxTokens        *int              `json:"max_completion_tokens,omitempty"`
	Stop             []string          `json:"stop,omitempty"`
	Seed             *int              `json:"seed,omitempty"`
	FrequencyPenalty *float64          `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64          `json:"presence_penalty,omitempty"`
	Tools            []toolSpec        `json:"tools,omitempty"`
	ToolChoice       any               `json:"tool_choice,omitempty"`
	User             string            `json:"user,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// buildRequest converts a loop request into an OpenAI API request.
func buildRequest(in *al.ChatRequest, defaultModel string) *chatRequest {
	req := &chatRequest{
		Model: defaultModel,
	}
	if opts := in.Options; opts != nil {
		if opts.ModelID != "" {
			req.Model = opts.ModelID
		}
		req.Temperature = opts.Temperature
		req.TopP = opts.TopP
		req.MaxTokens = opts.MaxTokens
		req.Stop = opts.Stop
		req.Seed = opts.Seed
		req.FrequencyPenalty = opts.FrequencyPenalty
		req.PresencePenalty = opts.PresencePenalty
		req.User = opts.User
		req.Metadata = opts.Metadata
	}

	for _, t := range in.Tools {
		req.Tools = append(req.Tools, toolSpec{
			Type: "function",
			Function: functionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	// tool_choice is only valid alongside tools.
	if len(req.Tools) > 0 && in.Options != nil {
		req.ToolChoice = convertToolChoice(in.Options.ToolChoice)
	}

	req.Messages = convertMessages(al.PrependInstructions(in.Messages, in.Instructions))
	return req
}

// convertMessages translates loop messages into OpenAI chat messages.
func convertMessages(messages []al.Message) []chatMessage {
	result := make([]chatMessage, 0, len(messages))

	for i := range messages {
		msg := &messages[i]
		cm := chatMessage{
			Role: string(msg.Role),
			Name: msg.AuthorName,
		}

		switch msg.Role {
		case al.RoleTool:
			if fr := msg.ToolResult(); fr != nil {
				cm.ToolCallID = fr.CallID
				cm.Content = &fr.Result
			}

		case al.RoleAssistant:
			for _, fc := range msg.ToolCalls() {
				cm.ToolCalls = append(cm.ToolCalls, toolCall{
					ID:   fc.CallID,
					Type: "function",
					Function: functionCall{
						Name:      fc.Name,
						Arguments: fc.Arguments,
					},
				})
			}
			if text := msg.Text(); text != "" || len(cm.ToolCalls) == 0 {
				cm.Content = &text
			}

		default:
			text := msg.Text()
			cm.Content = &text
		}

		result = append(result, cm)
	}

	return result
}

func convertToolChoice(tc al.ToolChoice) any {
	if name, ok := tc.FunctionName(); ok {
		return map[string]any{
			"type": "function",
			"function": map[string]string{
				"name": name,
			},
		}
	}
	if tc == "" {
		return nil
	}
	return string(tc)
}
