// Copyright (c) Microsoft. All rights reserved.

package openai_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	al "github.com/microsoft/agentloop/agentloop"
	"github.com/microsoft/agentloop/openai"
)

// mockTransportFunc is a RoundTripper that delegates to a function.
type mockTransportFunc func(*http.Request) (*http.Response, error)

func (f mockTransportFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newMockHTTPClient(fn func(*http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{Transport: mockTransportFunc(fn)}
}

func jsonResponse(req *http.Request, status int, body any) *http.Response {
	b, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
		Request:    req,
	}
}

func textCompletion(content string) map[string]any {
	return map[string]any{
		"id": "chatcmpl-1", "model": "gpt-4o",
		"choices": []map[string]any{{
			"index": 0, "finish_reason": "stop",
			"message": map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func decodeBody(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return m
}

func userRequest(text string) *al.ChatRequest {
	return &al.ChatRequest{Messages: []al.Message{al.NewUserMessage(text)}}
}

func TestClient_Complete_Basic(t *testing.T) {
	content := "Hello, I'm an AI assistant!"
	apiResp := map[string]any{
		"id":     "chatcmpl-123",
		"object": "chat.completion",
		"model":  "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message": map[string]any{
				"role":    "assistant",
				"content": content,
			},
		}},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
		},
	}

	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost {
			t.Errorf("method = %q", req.Method)
		}
		if req.URL.String() != "https://api.openai.com/v1/chat/completions" {
			t.Errorf("url = %q", req.URL.String())
		}
		if req.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth = %q", req.Header.Get("Authorization"))
		}

		body := decodeBody(t, req)
		if body["model"] != "gpt-4o" {
			t.Errorf("request model = %v", body["model"])
		}
		msgs := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("messages = %v", msgs)
		}
		system := msgs[0].(map[string]any)
		if system["role"] != "system" || system["content"] != "Be brief." {
			t.Errorf("system message = %v", system)
		}
		if _, ok := body["tools"]; ok {
			t.Error("tools sent without declarations")
		}

		return jsonResponse(req, http.StatusOK, apiResp), nil
	})

	client := openai.New("test-key",
		openai.WithModel("gpt-4o"),
		openai.WithHTTPClient(httpClient),
	)

	req := userRequest("hi")
	req.Instructions = "Be brief."
	resp, err := client.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.ResponseID != "chatcmpl-123" {
		t.Errorf("ResponseID = %q", resp.ResponseID)
	}
	if resp.ModelID != "gpt-4o" {
		t.Errorf("ModelID = %q", resp.ModelID)
	}
	if resp.FinishReason != al.FinishReasonStop {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 8 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
	if resp.Text() != content {
		t.Errorf("Text = %q", resp.Text())
	}
	if resp.Message.Role != al.RoleAssistant {
		t.Errorf("Role = %q", resp.Message.Role)
	}
}

func TestClient_Complete_ToolCalls(t *testing.T) {
	apiResp := map[string]any{
		"id":    "chatcmpl-456",
		"model": "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"role":    "assistant",
				"content": nil,
				"tool_calls": []map[string]any{{
					"id":   "call_abc",
					"type": "function",
					"function": map[string]any{
						"name":      "get_stock_price",
						"arguments": `{"ticker":"AAPL"}`,
					},
				}},
			},
		}},
	}

	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(req, http.StatusOK, apiResp), nil
	})
	client := openai.New("test-key", openai.WithModel("gpt-4o"), openai.WithHTTPClient(httpClient))

	resp, err := client.Complete(context.Background(), userRequest("price?"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.FinishReason != al.FinishReasonToolCalls {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}

	calls := resp.Message.ToolCalls()
	if len(calls) != 1 || len(resp.Message.Contents) != 1 {
		t.Fatalf("contents = %+v", resp.Message.Contents)
	}
	if calls[0].CallID != "call_abc" || calls[0].Name != "get_stock_price" || calls[0].Arguments != `{"ticker":"AAPL"}` {
		t.Errorf("call = %+v", calls[0])
	}
}

func TestClient_Complete_ConversationEncoding(t *testing.T) {
	var body map[string]any
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		body = decodeBody(t, req)
		return jsonResponse(req, http.StatusOK, textCompletion("done")), nil
	})
	client := openai.New("test-key", openai.WithHTTPClient(httpClient))

	_, err := client.Complete(context.Background(), &al.ChatRequest{
		Messages: []al.Message{
			al.NewUserMessage("price of AAPL?"),
			al.NewToolCallMessage("", &al.FunctionCallContent{CallID: "1", Name: "get_stock_price", Arguments: `{"ticker":"AAPL"}`}),
			al.NewToolMessage("1", "AAPL: USD 228.50 (+1.85%)"),
		},
		Tools: []al.ToolDeclaration{{
			Name:        "get_stock_price",
			Description: "Current price of a stock",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"ticker":{"type":"string"}}}`),
		}},
		Options: &al.ChatOptions{ToolChoice: al.ToolChoiceFunction("get_stock_price")},
	})
	if err != nil {
		t.Fatal(err)
	}

	msgs := body["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d", len(msgs))
	}
	assistant := msgs[1].(map[string]any)
	if assistant["content"] != nil {
		t.Errorf("assistant content = %v, want null", assistant["content"])
	}
	calls := assistant["tool_calls"].([]any)
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	if fn["name"] != "get_stock_price" || fn["arguments"] != `{"ticker":"AAPL"}` {
		t.Errorf("function = %v", fn)
	}
	tool := msgs[2].(map[string]any)
	if tool["role"] != "tool" || tool["tool_call_id"] != "1" || tool["content"] != "AAPL: USD 228.50 (+1.85%)" {
		t.Errorf("tool message = %v", tool)
	}

	tools := body["tools"].([]any)
	decl := tools[0].(map[string]any)["function"].(map[string]any)
	if decl["name"] != "get_stock_price" || decl["parameters"] == nil {
		t.Errorf("tool declaration = %v", decl)
	}
	choice := body["tool_choice"].(map[string]any)
	if choice["function"].(map[string]any)["name"] != "get_stock_price" {
		t.Errorf("tool_choice = %v", choice)
	}
}

func TestClient_Complete_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		want   error
	}{
		{
			name:   "401 Unauthorized",
			status: http.StatusUnauthorized,
			body:   map[string]any{"error": map[string]any{"message": "Invalid API key", "type": "authentication_error"}},
			want:   al.ErrAuth,
		},
		{
			name:   "Content Filter",
			status: http.StatusBadRequest,
			body:   map[string]any{"error": map[string]any{"message": "content filtered", "code": "content_filter"}},
			want:   al.ErrContentFilter,
		},
		{
			name:   "Bad Request",
			status: http.StatusBadRequest,
			body:   map[string]any{"error": map[string]any{"message": "bad schema", "code": "invalid_request"}},
			want:   al.ErrInvalidRequest,
		},
		{
			name:   "Rate Limited",
			status: http.StatusTooManyRequests,
			body:   map[string]any{"error": map[string]any{"message": "slow down", "code": "rate_limit_exceeded"}},
			want:   al.ErrRateLimited,
		},
		{
			name:   "Server Error",
			status: http.StatusInternalServerError,
			body:   map[string]any{},
			want:   al.ErrService,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
				return jsonResponse(req, tc.status, tc.body), nil
			})

			client := openai.New("bad-key",
				openai.WithModel("gpt-4o"),
				openai.WithHTTPClient(httpClient),
				openai.WithRetry(policy.RetryOptions{MaxRetries: -1}),
			)

			_, err := client.Complete(context.Background(), userRequest("hi"))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			var svcErr *al.ServiceError
			if !errors.As(err, &svcErr) || svcErr.StatusCode != tc.status {
				t.Errorf("ServiceError = %+v", svcErr)
			}
		})
	}
}

func TestClient_Complete_RetriesTransientErrors(t *testing.T) {
	var attempts atomic.Int32
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		if attempts.Add(1) == 1 {
			return jsonResponse(req, http.StatusServiceUnavailable, map[string]any{}), nil
		}
		return jsonResponse(req, http.StatusOK, textCompletion("recovered")), nil
	})

	client := openai.New("test-key",
		openai.WithHTTPClient(httpClient),
		openai.WithRetry(policy.RetryOptions{MaxRetries: 2, RetryDelay: time.Millisecond, MaxRetryDelay: 5 * time.Millisecond}),
	)
	resp, err := client.Complete(context.Background(), userRequest("hi"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text() != "recovered" || attempts.Load() != 2 {
		t.Errorf("text = %q after %d attempts", resp.Text(), attempts.Load())
	}
}

func TestClient_Complete_NoChoices(t *testing.T) {
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(req, http.StatusOK, map[string]any{"id": "x", "choices": []any{}}), nil
	})
	_, err := openai.New("k", openai.WithHTTPClient(httpClient)).Complete(context.Background(), userRequest("hi"))
	if !errors.Is(err, al.ErrInvalidResponse) {
		t.Errorf("err = %v, want ErrInvalidResponse", err)
	}
}

func TestClient_AzureDeployment(t *testing.T) {
	var body map[string]any
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Host != "myresource.openai.azure.com" {
			t.Errorf("host = %q", req.URL.Host)
		}
		if req.URL.Path != "/openai/deployments/gpt-4.1/chat/completions" {
			t.Errorf("path = %q", req.URL.Path)
		}
		if v := req.URL.Query().Get("api-version"); v != openai.DefaultAzureAPIVersion {
			t.Errorf("api-version = %q", v)
		}
		if req.Header.Get("api-key") != "azure-key" {
			t.Errorf("api-key = %q", req.Header.Get("api-key"))
		}
		if req.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header")
		}
		body = decodeBody(t, req)
		return jsonResponse(req, http.StatusOK, textCompletion("ok")), nil
	})

	client := openai.New("azure-key",
		openai.WithAzureDeployment("https://myresource.openai.azure.com/", "gpt-4.1", ""),
		openai.WithHTTPClient(httpClient),
	)
	if _, err := client.Complete(context.Background(), userRequest("hi")); err != nil {
		t.Fatal(err)
	}
	if body["model"] != "gpt-4.1" {
		t.Errorf("model = %v, want deployment name", body["model"])
	}
}

type fakeCredential struct {
	scopes []string
	calls  atomic.Int32
}

func (c *fakeCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	c.calls.Add(1)
	c.scopes = opts.Scopes
	return azcore.AccessToken{Token: "entra-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func TestClient_AzureCredential(t *testing.T) {
	cred := &fakeCredential{}
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer entra-token" {
			t.Errorf("Authorization = %q", got)
		}
		if req.Header.Get("api-key") != "" {
			t.Error("api-key must not be sent with a credential")
		}
		return jsonResponse(req, http.StatusOK, textCompletion("ok")), nil
	})

	client := openai.New("ignored",
		openai.WithAzureDeployment("https://myresource.openai.azure.com", "gpt-4.1", "2024-10-21"),
		openai.WithAzureCredential(cred),
		openai.WithHTTPClient(httpClient),
	)
	for range 2 {
		if _, err := client.Complete(context.Background(), userRequest("hi")); err != nil {
			t.Fatal(err)
		}
	}

	if cred.calls.Load() != 1 {
		t.Errorf("GetToken called %d times, want the token cached", cred.calls.Load())
	}
	if len(cred.scopes) != 1 || cred.scopes[0] != "https://cognitiveservices.azure.com/.default" {
		t.Errorf("scopes = %v", cred.scopes)
	}
}

func TestClient_WithOptions(t *testing.T) {
	var sentOrg, sentCustom string
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		sentOrg = req.Header.Get("OpenAI-Organization")
		sentCustom = req.Header.Get("X-Trace")
		if !strings.HasPrefix(req.URL.String(), "https://proxy.local/v1/") {
			t.Errorf("url = %q", req.URL.String())
		}
		return jsonResponse(req, http.StatusOK, textCompletion("ok")), nil
	})

	client := openai.New("test-key",
		openai.WithModel("gpt-4o"),
		openai.WithBaseURL("https://proxy.local/v1/"),
		openai.WithOrganization("org-abc"),
		openai.WithHeaders(map[string]string{"X-Trace": "t-1"}),
		openai.WithHTTPClient(httpClient),
	)

	if _, err := client.Complete(context.Background(), userRequest("hi")); err != nil {
		t.Fatal(err)
	}
	if sentOrg != "org-abc" || sentCustom != "t-1" {
		t.Errorf("headers: org = %q, custom = %q", sentOrg, sentCustom)
	}
}

func TestClient_ChatOptions_PassedThrough(t *testing.T) {
	var sentBody map[string]any
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		sentBody = decodeBody(t, req)
		return jsonResponse(req, http.StatusOK, textCompletion("ok")), nil
	})

	temp := 0.3
	maxTok := 100
	client := openai.New("test-key",
		openai.WithModel("gpt-4o"),
		openai.WithHTTPClient(httpClient),
	)

	req := userRequest("hi")
	req.Options = &al.ChatOptions{
		ModelID:     "gpt-4o-mini",
		Temperature: &temp,
		MaxTokens:   &maxTok,
		ToolChoice:  al.ToolChoiceNone,
	}
	if _, err := client.Complete(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	if sentBody["model"] != "gpt-4o-mini" {
		t.Errorf("model = %v", sentBody["model"])
	}
	if sentBody["temperature"] != 0.3 {
		t.Errorf("temperature = %v", sentBody["temperature"])
	}
	if sentBody["max_completion_tokens"] != float64(100) {
		t.Errorf("max_completion_tokens = %v", sentBody["max_completion_tokens"])
	}
	if _, ok := sentBody["tool_choice"]; ok {
		t.Errorf("tool_choice sent without tools: %v", sentBody["tool_choice"])
	}
}

func TestClient_WithAgent(t *testing.T) {
	var round atomic.Int32
	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		if round.Add(1) == 1 {
			return jsonResponse(req, http.StatusOK, map[string]any{
				"id": "c1", "model": "gpt-4o",
				"choices": []map[string]any{{
					"index": 0, "finish_reason": "tool_calls",
					"message": map[string]any{
						"role": "assistant",
						"tool_calls": []map[string]any{{
							"id": "call_1", "type": "function",
							"function": map[string]any{"name": "get_exchange_rate", "arguments": `{"pair":"EUR/BRL"}`},
						}},
					},
				}},
			}), nil
		}
		body := decodeBody(t, req)
		msgs := body["messages"].([]any)
		last := msgs[len(msgs)-1].(map[string]any)
		return jsonResponse(req, http.StatusOK, textCompletion("Euro: "+last["content"].(string))), nil
	})

	rate := al.NewTypedTool("get_exchange_rate", "Exchange rate",
		func(ctx context.Context, args struct {
			Pair string `json:"pair"`
		}) (any, error) {
			return args.Pair + ": 5.58 (-0.18%)", nil
		},
	)
	client := openai.New("test-key", openai.WithHTTPClient(httpClient))
	agent := al.NewAgent(client, al.MustRegistry(rate))

	text, err := agent.Execute(context.Background(), nil, "euro?")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if text != "Euro: EUR/BRL: 5.58 (-0.18%)" {
		t.Errorf("text = %q", text)
	}
}
