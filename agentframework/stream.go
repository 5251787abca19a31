// Copyright (c) Microsoft. All rights reserved.

package agentframework

import (
	"context"
	"sync"
)

// ResponseStream is a pull-based iterator over values produced by a
// goroutine. The producer's returned error is reported by Next once the
// values are exhausted.
//
// Callers must call Close when done, or cancel the context.
type ResponseStream[T any] struct {
	ch        <-chan T
	errCh     <-chan error
	cancel    context.CancelFunc
	closeOnce sync.Once
	err       error
}

// NewResponseStream runs producer in a goroutine. The channel handed to the
// producer is closed when it returns.
func NewResponseStream[T any](ctx context.Context, producer func(ctx context.Context, ch chan<- T) error) *ResponseStream[T] {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan T, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(ch)
		if err := producer(ctx, ch); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	return &ResponseStream[T]{ch: ch, errCh: errCh, cancel: cancel}
}

// Next returns the next value from the stream.
// ok is false when the stream is exhausted. err is non-nil on failure.
func (s *ResponseStream[T]) Next(ctx context.Context) (val T, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return val, false, err
	}
	select {
	case <-ctx.Done():
		return val, false, ctx.Err()
	case v, open := <-s.ch:
		if open {
			return v, true, nil
		}
		if e, ok := <-s.errCh; ok && s.err == nil {
			s.err = e
		}
		return val, false, s.err
	}
}

// Collect drains the stream and returns every value.
func (s *ResponseStream[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for {
		val, ok, err := s.Next(ctx)
		if err != nil {
			return items, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, val)
	}
}

// Close cancels the producer and releases resources. Safe to call more than once.
func (s *ResponseStream[T]) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		for range s.ch {
		}
	})
	return nil
}

// AgentResponseStream wraps a stream of [AgentResponseUpdate] and remembers
// what it has seen so FinalResponse can merge it.
type AgentResponseStream struct {
	stream  *ResponseStream[AgentResponseUpdate]
	updates []AgentResponseUpdate
}

// NewAgentResponseStream wraps a raw update stream.
func NewAgentResponseStream(stream *ResponseStream[AgentResponseUpdate]) *AgentResponseStream {
	return &AgentResponseStream{stream: stream}
}

// Next returns the next streaming update.
func (s *AgentResponseStream) Next(ctx context.Context) (AgentResponseUpdate, bool, error) {
	val, ok, err := s.stream.Next(ctx)
	if ok {
		s.updates = append(s.updates, val)
	}
	return val, ok, err
}

// FinalResponse drains the remaining updates and returns the merged [AgentResponse].
func (s *AgentResponseStream) FinalResponse(ctx context.Context) (*AgentResponse, error) {
	for {
		_, ok, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return AgentResponseFromUpdates(s.updates), nil
		}
	}
}

// Close releases the underlying stream resources.
func (s *AgentResponseStream) Close() error {
	return s.stream.Close()
}

// MapStream transforms a ResponseStream[A] into a ResponseStream[B] using fn.
func MapStream[A, B any](ctx context.Context, src *ResponseStream[A], fn func(A) B) *ResponseStream[B] {
	return NewResponseStream(ctx, func(ctx context.Context, ch chan<- B) error {
		defer src.Close()
		for {
			val, ok, err := src.Next(ctx)
			if err != nil || !ok {
				return err
			}
			select {
			case ch <- fn(val):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}
