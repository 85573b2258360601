// Copyright (c) Microsoft. All rights reserved.

package config

import (
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	al "github.com/microsoft/agentloop/agentloop"
	"github.com/microsoft/agentloop/anthropic"
	"github.com/microsoft/agentloop/openai"
)

// ClientOption customizes [NewChatClient].
type ClientOption func(*clientOptions)

type clientOptions struct {
	credential azcore.TokenCredential
	openai     []openai.Option
	anthropic  []anthropic.Option
}

// WithCredential sets the Azure credential used when no Azure API key is
// configured. The default is [azidentity.NewDefaultAzureCredential].
func WithCredential(cred azcore.TokenCredential) ClientOption {
	return func(o *clientOptions) { o.credential = cred }
}

// WithOpenAIOptions appends options for the azure and openai providers.
func WithOpenAIOptions(opts ...openai.Option) ClientOption {
	return func(o *clientOptions) { o.openai = append(o.openai, opts...) }
}

// WithAnthropicOptions appends options for the anthropic provider.
func WithAnthropicOptions(opts ...anthropic.Option) ClientOption {
	return func(o *clientOptions) { o.anthropic = append(o.anthropic, opts...) }
}

// NewChatClient builds the backend selected by c.Provider.
func NewChatClient(c *Config, opts ...ClientOption) (al.ChatClient, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch c.Provider {
	case ProviderAzure:
		oo := []openai.Option{openai.WithAzureDeployment(c.Azure.Endpoint, c.Azure.Deployment, c.Azure.APIVersion)}
		if c.Azure.APIKey == "" {
			cred := o.credential
			if cred == nil {
				dac, err := azidentity.NewDefaultAzureCredential(nil)
				if err != nil {
					return nil, fmt.Errorf("%w: azure credential: %w", ErrInvalidConfig, err)
				}
				cred = dac
			}
			slog.Debug("using Microsoft Entra ID authentication", "endpoint", c.Azure.Endpoint)
			oo = append(oo, openai.WithAzureCredential(cred))
		}
		return openai.New(c.Azure.APIKey, append(oo, o.openai...)...), nil

	case ProviderOpenAI:
		var oo []openai.Option
		if c.OpenAI.Model != "" {
			oo = append(oo, openai.WithModel(c.OpenAI.Model))
		}
		if c.OpenAI.BaseURL != "" {
			oo = append(oo, openai.WithBaseURL(c.OpenAI.BaseURL))
		}
		return openai.New(c.OpenAI.APIKey, append(oo, o.openai...)...), nil

	case ProviderAnthropic:
		var ao []anthropic.Option
		if c.Anthropic.Model != "" {
			ao = append(ao, anthropic.WithModel(c.Anthropic.Model))
		}
		if c.Anthropic.MaxTokens > 0 {
			ao = append(ao, anthropic.WithMaxTokens(c.Anthropic.MaxTokens))
		}
		return anthropic.New(c.Anthropic.APIKey, append(ao, o.anthropic...)...), nil
	}
	return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
}

// AgentOptions returns the agent options implied by c.
func (c *Config) AgentOptions() []al.AgentOption {
	opts := []al.AgentOption{
		al.WithInstructions(c.Instructions),
		al.WithMaxRounds(c.MaxRounds),
	}
	if c.MaxConcurrency > 0 {
		opts = append(opts, al.WithMaxConcurrency(c.MaxConcurrency))
	}
	if c.ToolTimeout > 0 {
		opts = append(opts, al.WithToolTimeout(c.ToolTimeout))
	}
	return opts
}
