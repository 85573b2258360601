// Copyright (c) Microsoft. All rights reserved.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	al "github.com/microsoft/agentloop/agentloop"
	"github.com/microsoft/agentloop/sqlitestore"
	"github.com/microsoft/agentloop/tools/finance"
)

// echoClient answers with the number of user messages seen so far, calling
// get_stock_price first when asked about PETR4.
type echoClient struct {
	mu       sync.Mutex
	requests []*al.ChatRequest
}

func (c *echoClient) Complete(_ context.Context, req *al.ChatRequest) (*al.ChatResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	last := req.Messages[len(req.Messages)-1]
	if last.Role == al.RoleUser && last.Text() == "PETR4?" {
		return &al.ChatResponse{Message: al.NewToolCallMessage("",
			&al.FunctionCallContent{CallID: "c1", Name: finance.StockPriceTool, Arguments: `{"ticker":"petr4"}`},
		)}, nil
	}
	if fr := last.ToolResult(); fr != nil {
		return &al.ChatResponse{Message: al.NewAssistantMessage(fr.Result)}, nil
	}
	users := 0
	for _, m := range req.Messages {
		if m.Role == al.RoleUser {
			users++
		}
	}
	return &al.ChatResponse{Message: al.NewAssistantMessage(string(rune('0' + users)))}, nil
}

func newTestServer(t *testing.T, db *sqlitestore.DB, apiKey string, maxSessions int) *agentServer {
	t.Helper()
	agent := al.NewAgent(&echoClient{}, finance.Registry())
	s, err := newAgentServer(agent, db, apiKey, maxSessions)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func postChat(t *testing.T, h http.Handler, body any, header http.Header) (*httptest.ResponseRecorder, ChatResponse) {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(b))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp ChatResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, "", 8)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestChat_ToolRound(t *testing.T) {
	s := newTestServer(t, nil, "", 8)
	rec, resp := postChat(t, s, ChatRequest{Message: "PETR4?"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if resp.Response != "PETR4: BRL 38.72 (+1.23%)" {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.ConversationID == "" {
		t.Error("a conversation id should be assigned")
	}
}

func TestChat_ConversationContinues(t *testing.T) {
	s := newTestServer(t, nil, "", 8)
	_, first := postChat(t, s, ChatRequest{Message: "hello"}, nil)
	_, second := postChat(t, s, ChatRequest{Message: "again", ConversationID: first.ConversationID}, nil)
	if first.Response != "1" || second.Response != "2" {
		t.Errorf("responses = %q, %q", first.Response, second.Response)
	}
	if second.ConversationID != first.ConversationID {
		t.Errorf("conversation id changed: %q -> %q", first.ConversationID, second.ConversationID)
	}

	_, other := postChat(t, s, ChatRequest{Message: "new"}, nil)
	if other.Response != "1" {
		t.Errorf("a new conversation should start empty, got %q", other.Response)
	}
}

func TestChat_EvictedSessionReloadsFromDB(t *testing.T) {
	db, err := sqlitestore.Open(context.Background(), filepath.Join(t.TempDir(), "h.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s := newTestServer(t, db, "", 1)
	postChat(t, s, ChatRequest{Message: "a", ConversationID: "conv-a"}, nil)
	postChat(t, s, ChatRequest{Message: "b", ConversationID: "conv-b"}, nil)
	if s.sessions.Contains("conv-a") {
		t.Fatal("conv-a should have been evicted")
	}

	_, resp := postChat(t, s, ChatRequest{Message: "a again", ConversationID: "conv-a"}, nil)
	if resp.Response != "2" {
		t.Errorf("response = %q, want history reloaded from the store", resp.Response)
	}
}

func TestChat_EvictedBusySessionStaysBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	client := al.ChatClientFunc(func(_ context.Context, req *al.ChatRequest) (*al.ChatResponse, error) {
		if req.Messages[len(req.Messages)-1].Text() == "slow" {
			close(entered)
			<-release
		}
		return &al.ChatResponse{Message: al.NewAssistantMessage("done")}, nil
	})
	s, err := newAgentServer(al.NewAgent(client, nil), nil, "", 1)
	if err != nil {
		t.Fatal(err)
	}

	first := make(chan int, 1)
	go func() {
		b, _ := json.Marshal(ChatRequest{Message: "slow", ConversationID: "conv-a"})
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(b)))
		first <- rec.Code
	}()
	<-entered

	if rec, _ := postChat(t, s, ChatRequest{Message: "hi", ConversationID: "conv-b"}, nil); rec.Code != http.StatusOK {
		t.Fatalf("conv-b: status = %d", rec.Code)
	}
	if s.sessions.Contains("conv-a") {
		t.Fatal("conv-a should have been evicted from the cache")
	}

	rec, _ := postChat(t, s, ChatRequest{Message: "again", ConversationID: "conv-a"}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("concurrent conv-a: status = %d, want %d", rec.Code, http.StatusConflict)
	}

	close(release)
	if code := <-first; code != http.StatusOK {
		t.Errorf("first conv-a: status = %d", code)
	}

	s.mu.Lock()
	n := len(s.active)
	s.mu.Unlock()
	if n != 0 {
		t.Errorf("%d sessions still pinned after all requests finished", n)
	}
}

func TestChat_BadRequests(t *testing.T) {
	s := newTestServer(t, nil, "", 8)

	rec, _ := postChat(t, s, ChatRequest{Message: "  "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString("{not json"))
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", rr.Code)
	}
}

func TestChat_Auth(t *testing.T) {
	s := newTestServer(t, nil, "secret", 8)

	rec, _ := postChat(t, s, ChatRequest{Message: "hi"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}
	rec, _ = postChat(t, s, ChatRequest{Message: "hi"}, http.Header{"Authorization": {"Bearer wrong"}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d", rec.Code)
	}
	rec, resp := postChat(t, s, ChatRequest{Message: "hi"}, http.Header{"Authorization": {"Bearer secret"}})
	if rec.Code != http.StatusOK || resp.Response != "1" {
		t.Errorf("valid token: status = %d, response = %q", rec.Code, resp.Response)
	}
}

func TestChat_BackendFailure(t *testing.T) {
	client := al.ChatClientFunc(func(context.Context, *al.ChatRequest) (*al.ChatResponse, error) {
		return nil, al.ErrRateLimited
	})
	s, err := newAgentServer(al.NewAgent(client, nil), nil, "", 8)
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := postChat(t, s, ChatRequest{Message: "hi"}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
