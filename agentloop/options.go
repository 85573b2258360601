// Copyright (c) Microsoft. All rights reserved.

package agentloop

import "strings"

// ToolChoice controls how the model selects tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

const toolChoiceFunctionPrefix = "function:"

// ToolChoiceFunction returns a ToolChoice that forces the model to call
// the named function.
func ToolChoiceFunction(name string) ToolChoice {
	return ToolChoice(toolChoiceFunctionPrefix + name)
}

// FunctionName returns the forced function name, if tc names one.
func (tc ToolChoice) FunctionName() (string, bool) {
	s := string(tc)
	if !strings.HasPrefix(s, toolChoiceFunctionPrefix) || len(s) == len(toolChoiceFunctionPrefix) {
		return "", false
	}
	return s[len(toolChoiceFunctionPrefix):], true
}

// ChatOptions configures a single backend request.
// Pointer fields use nil to represent "unset" (use provider default).
type ChatOptions struct {
	ModelID          string
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	Stop             []string
	Seed             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	ToolChoice       ToolChoice
	User             string
	Metadata         map[string]string

	// Extra holds provider-specific options not covered by standard fields.
	Extra map[string]any
}

// Clone returns a copy of o whose maps and slices are not shared.
func (o *ChatOptions) Clone() *ChatOptions {
	if o == nil {
		return nil
	}
	cp := *o
	if o.Stop != nil {
		cp.Stop = append([]string(nil), o.Stop...)
	}
	if o.Metadata != nil {
		cp.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
			cp.Metadata[k] = v
		}
	}
	if o.Extra != nil {
		cp.Extra = make(map[string]any, len(o.Extra))
		for k, v := range o.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// MergeChatOptions produces a new ChatOptions by overlaying override values
// onto base. Nil or zero-value fields in override do not overwrite base.
// Metadata and Extra are merged (override keys win).
func MergeChatOptions(base, override *ChatOptions) *ChatOptions {
	if base == nil {
		if override == nil {
			return &ChatOptions{}
		}
		return override.Clone()
	}
	merged := base.Clone()
	if override == nil {
		return merged
	}

	if override.ModelID != "" {
		merged.ModelID = override.ModelID
	}
	if override.Temperature != nil {
		merged.Temperature = override.Temperature
	}
	if override.TopP != nil {
		merged.TopP = override.TopP
	}
	if override.MaxTokens != nil {
		merged.MaxTokens = override.MaxTokens
	}
	if len(override.Stop) > 0 {
		merged.Stop = append([]string(nil), override.Stop...)
	}
	if override.Seed != nil {
		merged.Seed = override.Seed
	}
	if override.FrequencyPenalty != nil {
		merged.FrequencyPenalty = override.FrequencyPenalty
	}
	if override.PresencePenalty != nil {
		merged.PresencePenalty = override.PresencePenalty
	}
	if override.ToolChoice != "" {
		merged.ToolChoice = override.ToolChoice
	}
	if override.User != "" {
		merged.User = override.User
	}

	if len(override.Metadata) > 0 {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]string, len(override.Metadata))
		}
		for k, v := range override.Metadata {
			merged.Metadata[k] = v
		}
	}
	if len(override.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = make(map[string]any, len(override.Extra))
		}
		for k, v := range override.Extra {
			merged.Extra[k] = v
		}
	}

	return merged
}
