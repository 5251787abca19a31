// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"slices"
	"sync"
)

// MessageStore persists conversation messages for a [Session].
type MessageStore interface {
	// ListMessages returns all stored messages in order.
	ListMessages(ctx context.Context) ([]Message, error)

	// AddMessages appends messages.
	AddMessages(ctx context.Context, msgs []Message) error

	Serialize() (map[string]any, error)
}

// InMemoryStore is a [MessageStore] backed by a slice. Safe for concurrent use.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages []Message
	limit    int
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// NewWindowedStore creates a store that keeps only the last limit messages.
func NewWindowedStore(limit int) *InMemoryStore {
	return &InMemoryStore{limit: limit}
}

func (s *InMemoryStore) ListMessages(_ context.Context) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages), nil
}

func (s *InMemoryStore) AddMessages(_ context.Context, msgs []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msgs...)
	if s.limit > 0 && len(s.messages) > s.limit {
		s.messages = slices.Clone(s.messages[len(s.messages)-s.limit:])
	}
	return nil
}

func (s *InMemoryStore) Serialize() (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"messages": slices.Clone(s.messages),
	}, nil
}
