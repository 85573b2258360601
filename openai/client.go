// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"context"
	"encoding/json"
	"fmt"

	al "github.com/microsoft/agentloop/agentloop"
)

// Client implements [agentloop.ChatClient] using the OpenAI Chat
// Completions API. Use [New] to create one.
type Client struct {
	tp      transport
	model   string
	handler al.ChatHandler
}

// Verify interface compliance at compile time.
var _ al.ChatClient = (*Client)(nil)

// New creates an OpenAI [Client] with the given API key and options.
// The key may be empty when [WithAzureCredential] is used.
//
//	client := openai.New(os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o"),
//	)
func New(apiKey string, opts ...Option) *Client {
	cfg := &clientConfig{}
	for _, o := range opts {
		o(cfg)
	}
	c := &Client{
		tp:    newPipelineTransport(apiKey, cfg),
		model: cfg.model,
	}
	c.handler = al.ChainChatMiddleware(c.complete, cfg.chatMiddleware...)
	return c
}

// Complete sends a chat completion request and returns the model's reply.
func (c *Client) Complete(ctx context.Context, req *al.ChatRequest) (*al.ChatResponse, error) {
	return c.handler(ctx, req)
}

// complete is the base implementation called by the middleware chain.
func (c *Client) complete(ctx context.Context, req *al.ChatRequest) (*al.ChatResponse, error) {
	body, err := c.tp.do(ctx, buildRequest(req, c.model))
	if err != nil {
		return nil, err
	}

	var raw chatCompletionResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", al.ErrInvalidResponse, err)
	}
	if len(raw.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", al.ErrInvalidResponse)
	}

	result := parseChatResponse(&raw)
	result.Raw = &raw
	return result, nil
}
