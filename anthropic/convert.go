// Copyright (c) Microsoft. All rights reserved.

package anthropic

import (
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	al "github.com/microsoft/agentloop/agentloop"
)

func buildParams(req *al.ChatRequest, model sdk.Model, maxTokens int64) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
	}

	system := req.Instructions
	if opts := req.Options; opts != nil {
		if opts.ModelID != "" {
			params.Model = sdk.Model(opts.ModelID)
		}
		if opts.MaxTokens != nil {
			params.MaxTokens = int64(*opts.MaxTokens)
		}
		if opts.Temperature != nil {
			params.Temperature = sdk.Float(*opts.Temperature)
		}
		if opts.TopP != nil {
			params.TopP = sdk.Float(*opts.TopP)
		}
		params.StopSequences = opts.Stop
	}

	var msgs []sdk.MessageParam
	var results []sdk.ContentBlockParamUnion
	flushResults := func() {
		if len(results) > 0 {
			msgs = append(msgs, sdk.NewUserMessage(results...))
			results = nil
		}
	}

	for i := range req.Messages {
		m := &req.Messages[i]
		if m.Role == al.RoleTool {
			if fr := m.ToolResult(); fr != nil {
				results = append(results, sdk.NewToolResultBlock(fr.CallID, fr.Result, fr.IsError))
			}
			continue
		}
		flushResults()

		switch m.Role {
		case al.RoleSystem:
			system = joinNonEmpty(system, m.Text())
		case al.RoleAssistant:
			var blocks []sdk.ContentBlockParamUnion
			if text := m.Text(); text != "" {
				blocks = append(blocks, sdk.NewTextBlock(text))
			}
			for _, fc := range m.ToolCalls() {
				blocks = append(blocks, sdk.NewToolUseBlock(fc.CallID, toolInput(fc.Arguments), fc.Name))
			}
			if len(blocks) > 0 {
				msgs = append(msgs, sdk.NewAssistantMessage(blocks...))
			}
		default:
			msgs = append(msgs, sdk.NewUserMessage(sdk.NewTextBlock(m.Text())))
		}
	}
	flushResults()
	params.Messages = msgs

	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	var choice al.ToolChoice
	if req.Options != nil {
		choice = req.Options.ToolChoice
	}
	if len(req.Tools) > 0 && choice != al.ToolChoiceNone {
		params.Tools = convertTools(req.Tools)
		if tc, ok := convertToolChoice(choice); ok {
			params.ToolChoice = tc
		}
	}
	return params
}

// toolInput returns the call arguments as a JSON value. Arguments that are
// not a JSON object are replaced by an empty object so the request stays
// valid; the loop already reported them to the model as an error.
func toolInput(args string) any {
	if r := gjson.Parse(args); gjson.Valid(args) && r.IsObject() {
		return json.RawMessage(args)
	}
	return map[string]any{}
}

func convertTools(decls []al.ToolDeclaration) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(decls))
	for _, d := range decls {
		tool := &sdk.ToolParam{
			Name:        d.Name,
			InputSchema: inputSchema(d.Parameters),
		}
		if d.Description != "" {
			tool.Description = sdk.String(d.Description)
		}
		out = append(out, sdk.ToolUnionParam{OfTool: tool})
	}
	return out
}

func inputSchema(raw json.RawMessage) sdk.ToolInputSchemaParam {
	var schema struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	_ = json.Unmarshal(raw, &schema)
	if schema.Properties == nil {
		schema.Properties = map[string]any{}
	}
	return sdk.ToolInputSchemaParam{
		Properties: schema.Properties,
		Required:   schema.Required,
	}
}

func convertToolChoice(tc al.ToolChoice) (sdk.ToolChoiceUnionParam, bool) {
	if name, ok := tc.FunctionName(); ok {
		return sdk.ToolChoiceUnionParam{OfTool: &sdk.ToolChoiceToolParam{Name: name}}, true
	}
	switch tc {
	case al.ToolChoiceAuto:
		return sdk.ToolChoiceUnionParam{OfAuto: &sdk.ToolChoiceAutoParam{}}, true
	case al.ToolChoiceRequired:
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}, true
	}
	return sdk.ToolChoiceUnionParam{}, false
}

// parseMessage converts a Messages API reply into a loop response.
func parseMessage(msg *sdk.Message) *al.ChatResponse {
	out := al.Message{Role: al.RoleAssistant}
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case sdk.TextBlock:
			out.Contents = append(out.Contents, &al.TextContent{Text: v.Text})
		case sdk.ToolUseBlock:
			out.Contents = append(out.Contents, &al.FunctionCallContent{
				CallID:    v.ID,
				Name:      v.Name,
				Arguments: v.JSON.Input.Raw(),
			})
		}
	}

	return &al.ChatResponse{
		Message:      out,
		ResponseID:   msg.ID,
		ModelID:      string(msg.Model),
		FinishReason: mapStopReason(string(msg.StopReason)),
		Usage: al.UsageDetails{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

func mapStopReason(s string) al.FinishReason {
	switch s {
	case "end_turn", "stop_sequence":
		return al.FinishReasonStop
	case "max_tokens":
		return al.FinishReasonLength
	case "tool_use":
		return al.FinishReasonToolCalls
	case "refusal":
		return al.FinishReasonContentFilter
	default:
		return al.FinishReason(s)
	}
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return strings.Join([]string{a, b}, "\n")
}
