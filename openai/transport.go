// Copyright (c) Microsoft. All rights reserved.

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	al "github.com/microsoft/agentloop/agentloop"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	moduleName     = "agentloop/openai"
	moduleVersion  = "v0.1.0"

	cognitiveServicesScope = "https://cognitiveservices.azure.com/.default"
)

// transport sends one JSON request and returns the decoded response body.
type transport interface {
	do(ctx context.Context, body any) ([]byte, error)
}

// pipelineTransport sends requests through an azcore pipeline, which
// provides retries, auth policies and request logging.
type pipelineTransport struct {
	pl       runtime.Pipeline
	endpoint string
}

func newPipelineTransport(apiKey string, cfg *clientConfig) *pipelineTransport {
	var perRetry []policy.Policy
	switch {
	case cfg.azureCredential != nil:
		perRetry = append(perRetry, runtime.NewBearerTokenPolicy(cfg.azureCredential, []string{cognitiveServicesScope}, nil))
	case apiKey != "" && cfg.azure != nil:
		perRetry = append(perRetry, &headerPolicy{name: "api-key", value: apiKey})
	case apiKey != "":
		perRetry = append(perRetry, &headerPolicy{name: "Authorization", value: "Bearer " + apiKey})
	}

	static := map[string]string{}
	if cfg.organization != "" {
		static["OpenAI-Organization"] = cfg.organization
	}
	for k, v := range cfg.headers {
		static[k] = v
	}
	var perCall []policy.Policy
	if len(static) > 0 {
		perCall = append(perCall, &staticHeadersPolicy{headers: static})
	}

	opts := &policy.ClientOptions{}
	if cfg.httpClient != nil {
		opts.Transport = cfg.httpClient
	}
	if cfg.retry != nil {
		opts.Retry = *cfg.retry
	}

	return &pipelineTransport{
		pl: runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
			PerCall:  perCall,
			PerRetry: perRetry,
		}, opts),
		endpoint: chatCompletionsURL(cfg),
	}
}

func chatCompletionsURL(cfg *clientConfig) string {
	if cfg.azure != nil {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			strings.TrimRight(cfg.azure.endpoint, "/"),
			url.PathEscape(cfg.azure.deployment),
			url.QueryEscape(cfg.azure.apiVersion),
		)
	}
	base := cfg.baseURL
	if base == "" {
		base = defaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/chat/completions"
}

func (t *pipelineTransport) do(ctx context.Context, body any) ([]byte, error) {
	req, err := runtime.NewRequest(ctx, http.MethodPost, t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if err := runtime.MarshalAsJSON(req, body); err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := t.pl.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request: %w", al.ErrService, err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, parseErrorResponse(resp)
	}

	payload, err := runtime.Payload(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %w", al.ErrService, err)
	}
	slog.DebugContext(ctx, "chat completion received", "status", resp.StatusCode, "bytes", len(payload))
	return payload, nil
}

// headerPolicy sets one header on every try.
type headerPolicy struct {
	name  string
	value string
}

func (p *headerPolicy) Do(req *policy.Request) (*http.Response, error) {
	req.Raw().Header.Set(p.name, p.value)
	return req.Next()
}

// staticHeadersPolicy sets caller-supplied headers once per call.
type staticHeadersPolicy struct {
	headers map[string]string
}

func (p *staticHeadersPolicy) Do(req *policy.Request) (*http.Response, error) {
	for k, v := range p.headers {
		req.Raw().Header.Set(k, v)
	}
	return req.Next()
}

// parseErrorResponse reads an error response body and returns a typed error.
func parseErrorResponse(resp *http.Response) error {
	body, _ := runtime.Payload(resp)

	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)

	msg := apiErr.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	svcErr := &al.ServiceError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Code:       apiErr.Error.Code,
	}

	switch {
	case apiErr.Error.Code == "content_filter":
		svcErr.Err = al.ErrContentFilter
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		svcErr.Err = al.ErrAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		svcErr.Err = al.ErrRateLimited
	case resp.StatusCode == http.StatusBadRequest:
		svcErr.Err = al.ErrInvalidRequest
	default:
		svcErr.Err = al.ErrService
	}

	return svcErr
}
