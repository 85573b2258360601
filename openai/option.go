// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	al "github.com/microsoft/agentloop/agentloop"
)

// clientConfig holds resolved configuration for the OpenAI client.
type clientConfig struct {
	baseURL         string
	organization    string
	httpClient      *http.Client
	headers         map[string]string
	model           string
	azureCredential azcore.TokenCredential
	azure           *azureDeployment
	retry           *policy.RetryOptions
	chatMiddleware  []al.ChatMiddleware
}

// azureDeployment addresses a model deployment on an Azure OpenAI resource.
type azureDeployment struct {
	endpoint   string
	deployment string
	apiVersion string
}

// DefaultAzureAPIVersion is used by [WithAzureDeployment] when no version is given.
const DefaultAzureAPIVersion = "2025-01-01-preview"

// Option configures an OpenAI [Client].
type Option func(*clientConfig)

// WithBaseURL overrides the API base URL (e.g., for proxies or compatible servers).
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithOrganization sets the OpenAI organization header.
func WithOrganization(org string) Option {
	return func(c *clientConfig) { c.organization = org }
}

// WithHTTPClient provides a custom http.Client used as the pipeline transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = client }
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *clientConfig) { c.headers = headers }
}

// WithModel sets the default model for requests.
func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

// WithAzureCredential enables Microsoft Entra ID token authentication using the provided credential.
// When set, the client obtains and refreshes tokens automatically and the API key is ignored.
func WithAzureCredential(cred azcore.TokenCredential) Option {
	return func(c *clientConfig) { c.azureCredential = cred }
}

// WithAzureDeployment targets an Azure OpenAI deployment:
//
//	{endpoint}/openai/deployments/{deployment}/chat/completions?api-version={apiVersion}
//
// The API key, if any, is sent in the api-key header. The deployment name
// doubles as the default model.
func WithAzureDeployment(endpoint, deployment, apiVersion string) Option {
	return func(c *clientConfig) {
		if apiVersion == "" {
			apiVersion = DefaultAzureAPIVersion
		}
		c.azure = &azureDeployment{endpoint: endpoint, deployment: deployment, apiVersion: apiVersion}
		if c.model == "" {
			c.model = deployment
		}
	}
}

// WithRetry overrides the pipeline retry policy. Set MaxRetries to -1 to
// disable retries.
func WithRetry(opts policy.RetryOptions) Option {
	return func(c *clientConfig) { c.retry = &opts }
}

// WithChatMiddleware adds middleware to the chat pipeline.
// Middleware is applied in the order provided (first = outermost).
func WithChatMiddleware(mw ...al.ChatMiddleware) Option {
	return func(c *clientConfig) { c.chatMiddleware = append(c.chatMiddleware, mw...) }
}
