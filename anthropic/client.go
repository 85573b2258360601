// Copyright (c) Microsoft. All rights reserved.

package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	al "github.com/microsoft/agentloop/agentloop"
)

// DefaultModel is used when neither [WithModel] nor ChatOptions.ModelID is set.
const DefaultModel = sdk.ModelClaude3_7SonnetLatest

// DefaultMaxTokens bounds each reply when ChatOptions.MaxTokens is unset.
const DefaultMaxTokens = 1024

// Client implements [agentloop.ChatClient] using the Anthropic Messages API.
type Client struct {
	api       sdk.Client
	model     sdk.Model
	maxTokens int64
	handler   al.ChatHandler
}

var _ al.ChatClient = (*Client)(nil)

type clientConfig struct {
	model          string
	maxTokens      int64
	requestOptions []option.RequestOption
	chatMiddleware []al.ChatMiddleware
}

// Option configures an Anthropic [Client].
type Option func(*clientConfig)

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

// WithMaxTokens sets the default reply size limit.
func WithMaxTokens(n int) Option {
	return func(c *clientConfig) { c.maxTokens = int64(n) }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.requestOptions = append(c.requestOptions, option.WithBaseURL(url)) }
}

// WithHTTPClient provides a custom http.Client for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) { c.requestOptions = append(c.requestOptions, option.WithHTTPClient(client)) }
}

// WithMaxRetries sets how often the SDK retries failed requests.
func WithMaxRetries(n int) Option {
	return func(c *clientConfig) { c.requestOptions = append(c.requestOptions, option.WithMaxRetries(n)) }
}

// WithChatMiddleware adds middleware to the chat pipeline.
// Middleware is applied in the order provided (first = outermost).
func WithChatMiddleware(mw ...al.ChatMiddleware) Option {
	return func(c *clientConfig) { c.chatMiddleware = append(c.chatMiddleware, mw...) }
}

// New creates an Anthropic [Client]. An empty apiKey falls back to the
// ANTHROPIC_API_KEY environment variable.
func New(apiKey string, opts ...Option) *Client {
	cfg := &clientConfig{
		model:     string(DefaultModel),
		maxTokens: DefaultMaxTokens,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := cfg.requestOptions
	if apiKey != "" {
		reqOpts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, reqOpts...)
	}

	c := &Client{
		api:       sdk.NewClient(reqOpts...),
		model:     sdk.Model(cfg.model),
		maxTokens: cfg.maxTokens,
	}
	c.handler = al.ChainChatMiddleware(c.complete, cfg.chatMiddleware...)
	return c
}

// Complete sends the conversation to the Messages API.
func (c *Client) Complete(ctx context.Context, req *al.ChatRequest) (*al.ChatResponse, error) {
	return c.handler(ctx, req)
}

func (c *Client) complete(ctx context.Context, req *al.ChatRequest) (*al.ChatResponse, error) {
	params := buildParams(req, c.model, c.maxTokens)

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}
	resp := parseMessage(msg)
	resp.Raw = msg
	return resp, nil
}

// mapError converts SDK errors into the agentloop error tree.
func mapError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", al.ErrService, err)
	}

	svcErr := &al.ServiceError{
		StatusCode: apiErr.StatusCode,
		Message:    apiErr.Error(),
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		svcErr.Err = al.ErrAuth
	case http.StatusTooManyRequests:
		svcErr.Err = al.ErrRateLimited
	case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge:
		svcErr.Err = al.ErrInvalidRequest
	default:
		svcErr.Err = al.ErrService
	}
	return svcErr
}
