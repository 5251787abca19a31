// Copyright (c) Microsoft. All rights reserved.

package copilot

import (
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// ErrStreamClosed is returned by Recv and Collect when the stream was
// closed before the provider finished the response.
var ErrStreamClosed = errors.New("copilot: stream closed before the response completed")

// chunkSource yields normalized chunks. Recv returns io.EOF at the end.
type chunkSource interface {
	Recv() (Chunk, error)
	Close() error
}

type openaiSource struct {
	stream *openai.ChatCompletionStream
}

func (s openaiSource) Recv() (Chunk, error) {
	r, err := s.stream.Recv()
	if err != nil {
		return Chunk{}, err
	}
	return chunkFromStream(r), nil
}

func (s openaiSource) Close() error { return s.stream.Close() }

// MessageStream is a synchronous, pull-based sequence of message lists.
// Each Recv reads provider chunks one at a time until one of them emits
// something, so no chunk is requested before the previous one has been
// fully processed. In accumulated mode every list supersedes the previous
// one; in delta mode each list is an increment.
//
// MessageStream is not safe for concurrent use. Close it when done.
type MessageStream struct {
	src    chunkSource
	acc    *StreamAccumulator
	queued [][]af.Message
	err    error
	closed bool
}

func newMessageStream(src chunkSource, mode StreamMode) *MessageStream {
	return &MessageStream{src: src, acc: NewStreamAccumulator(mode)}
}

// finishedStream yields msgs once and then io.EOF.
func finishedStream(acc *StreamAccumulator, msgs []af.Message) *MessageStream {
	return &MessageStream{acc: acc, queued: [][]af.Message{msgs}}
}

// Recv returns the next message list, io.EOF when the response is
// complete, or the model service error that ended it. Errors are sticky.
func (s *MessageStream) Recv() ([]af.Message, error) {
	if len(s.queued) > 0 {
		msgs := s.queued[0]
		s.queued = s.queued[1:]
		return msgs, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.src == nil {
		s.err = io.EOF
		return nil, s.err
	}
	for {
		c, err := s.src.Recv()
		if errors.Is(err, io.EOF) {
			_, _ = s.acc.Finish()
			s.err = io.EOF
			s.Close()
			return nil, io.EOF
		}
		if err != nil {
			s.err = s.acc.Fail(err)
			s.Close()
			return nil, s.err
		}
		if msgs := s.acc.Process(c); len(msgs) > 0 {
			return msgs, nil
		}
	}
}

// Collect drains the stream and returns the completed reply in the
// layout of [StreamAccumulator.Finish].
func (s *MessageStream) Collect() ([]af.Message, error) {
	for {
		_, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return s.acc.Finish()
		}
		if err != nil {
			return nil, err
		}
	}
}

// Mode reports whether lists are increments or snapshots.
func (s *MessageStream) Mode() StreamMode { return s.acc.Mode() }

// ResponseID, FinishReason and Usage report what the provider sent so far.
func (s *MessageStream) ResponseID() string            { return s.acc.ResponseID() }
func (s *MessageStream) FinishReason() af.FinishReason { return s.acc.FinishReason() }
func (s *MessageStream) Usage() af.UsageDetails        { return s.acc.Usage() }

// Close releases the connection. Safe to call more than once. Recv after
// Close keeps returning io.EOF or the failure when the stream had already
// ended; otherwise it returns ErrStreamClosed.
func (s *MessageStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.queued = nil
	if s.err == nil {
		s.err = ErrStreamClosed
	}
	if s.src == nil {
		return nil
	}
	return s.src.Close()
}
