// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Session holds the conversation state of a multi-turn interaction.
// History is kept in a [MessageStore]; an in-memory store is used when none
// is given.
type Session struct {
	mu              sync.Mutex
	id              string
	store           MessageStore
	contextProvider ContextProvider
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithSessionID uses id instead of a generated one, e.g. when resuming.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithSessionStore sets the message store.
func WithSessionStore(store MessageStore) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithSessionContextProvider attaches a context provider to the session.
func WithSessionContextProvider(cp ContextProvider) SessionOption {
	return func(s *Session) { s.contextProvider = cp }
}

// NewSession creates a Session.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.store == nil {
		s.store = NewInMemoryStore()
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Store returns the message store. Never nil.
func (s *Session) Store() MessageStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// SetStore replaces the message store.
func (s *Session) SetStore(store MessageStore) {
	if store == nil {
		store = NewInMemoryStore()
	}
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
}

// ContextProvider returns the session's context provider, if any.
func (s *Session) ContextProvider() ContextProvider { return s.contextProvider }

// Serialize returns the session state as a map suitable for JSON or YAML.
func (s *Session) Serialize() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	storeState, err := s.store.Serialize()
	if err != nil {
		return nil, fmt.Errorf("%w: serialize store: %w", ErrSession, err)
	}
	return map[string]any{
		"id":    s.id,
		"store": storeState,
	}, nil
}
