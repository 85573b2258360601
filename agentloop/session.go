// Copyright (c) Microsoft. All rights reserved.

package agentloop

import (
	"context"
	"fmt"
	"sync"
)

// Session ties a conversation's history to a [MessageStore] and allows one
// run at a time. A second run started while one is in flight fails with
// [ErrSessionBusy] instead of waiting.
type Session struct {
	id    string
	store MessageStore
	busy  sync.Mutex
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithSessionStore sets the message store for the session.
// The default is a fresh [InMemoryStore].
func WithSessionStore(store MessageStore) SessionOption {
	return func(s *Session) {
		s.store = store
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// NewSession creates a new Session with a generated ID.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id: newID(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = NewInMemoryStore()
	}
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Store returns the session's message store.
func (s *Session) Store() MessageStore { return s.store }

func (s *Session) acquire() (release func(), err error) {
	if !s.busy.TryLock() {
		return nil, fmt.Errorf("%w: session %s", ErrSessionBusy, s.id)
	}
	return s.busy.Unlock, nil
}

// RunSession runs the loop on the session's stored history and appends the
// new messages to the store when the run succeeds. A failed run leaves the
// store untouched.
func (a *Agent) RunSession(ctx context.Context, session *Session, userText string, opts ...RunOption) (*RunResult, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInitialization)
	}
	release, err := session.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	prior, err := session.store.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %w", ErrSession, err)
	}

	res, err := a.Run(ctx, prior, userText, opts...)
	if err != nil {
		return nil, err
	}

	if err := session.store.AddMessages(ctx, res.Messages); err != nil {
		return nil, fmt.Errorf("%w: save history: %w", ErrSession, err)
	}
	return res, nil
}
