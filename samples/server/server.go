// Copyright (c) Microsoft. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	al "github.com/microsoft/agentloop/agentloop"
	"github.com/microsoft/agentloop/sqlitestore"
)

// ChatRequest is the JSON body for POST /chat.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the JSON body returned from POST /chat.
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// agentServer is the HTTP handler for the agent.
type agentServer struct {
	agent  *al.Agent
	db     *sqlitestore.DB
	apiKey string
	logger *slog.Logger

	mu       sync.Mutex
	sessions *lru.Cache[string, *al.Session]
	active   map[string]*activeSession
	mux      *http.ServeMux
}

// activeSession pins a session with in-flight requests so that a cache
// eviction cannot hand out a second session for the same conversation.
type activeSession struct {
	session *al.Session
	refs    int
}

// newAgentServer creates a server keeping at most maxSessions conversations
// in memory. With a non-nil db, evicted conversations are reloaded from it.
// If apiKey is empty, /chat is unauthenticated.
func newAgentServer(agent *al.Agent, db *sqlitestore.DB, apiKey string, maxSessions int) (*agentServer, error) {
	cache, err := lru.New[string, *al.Session](maxSessions)
	if err != nil {
		return nil, err
	}
	s := &agentServer{
		agent:    agent,
		db:       db,
		apiKey:   apiKey,
		logger:   slog.Default().With("component", "server"),
		sessions: cache,
		active:   make(map[string]*activeSession),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /chat", s.handleChat)
	return s, nil
}

func (s *agentServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
	s.mux.ServeHTTP(w, r)
}

func (s *agentServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *agentServer) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.apiKey != "" && extractBearer(r) != s.apiKey {
		s.logger.Warn("unauthorized chat request", "remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	session, release := s.acquireSession(req.ConversationID)
	defer release()
	res, err := s.agent.RunSession(r.Context(), session, req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, al.ErrSessionBusy) {
			status = http.StatusConflict
		}
		s.logger.ErrorContext(r.Context(), "agent run failed",
			"conversation_id", req.ConversationID,
			"error", err,
		)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:       res.Text,
		ConversationID: req.ConversationID,
	})
}

// acquireSession returns the session for id and a func that must be called
// when the request is done with it.
func (s *agentServer) acquireSession(id string) (*al.Session, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.active[id]
	if !ok {
		sess, cached := s.sessions.Get(id)
		if !cached {
			opts := []al.SessionOption{al.WithSessionID(id)}
			if s.db != nil {
				opts = append(opts, al.WithSessionStore(s.db.Store(id)))
			}
			sess = al.NewSession(opts...)
		}
		a = &activeSession{session: sess}
		s.active[id] = a
	}
	a.refs++
	s.sessions.Add(id, a.session)

	return a.session, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		a.refs--
		if a.refs == 0 {
			delete(s.active, id)
		}
	}
}

func extractBearer(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
