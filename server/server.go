// Copyright (c) Microsoft. All rights reserved.

// Package server exposes an agent over HTTP: a plain JSON /invoke endpoint
// and the A2A JSON-RPC methods message/send and tasks/get. Conversations are
// kept per conversation or context id.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// Runner is what the server drives. [*af.Agent] implements it.
type Runner interface {
	Name() string
	Description() string
	NewSession() *af.Session
	Run(ctx context.Context, messages []af.Message, opts ...af.RunOption) (*af.AgentResponse, error)
}

// InvokeRequest is the JSON body for POST /invoke.
type InvokeRequest struct {
	Input          string `json:"input"`
	ConversationID string `json:"conversationId,omitempty"`
}

// InvokeResponse is the JSON body returned from POST /invoke.
type InvokeResponse struct {
	Output         string          `json:"output"`
	ConversationID string          `json:"conversationId,omitempty"`
	Usage          af.UsageDetails `json:"usage"`
}

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeAgentError     = -32000
	codeTaskNotFound   = -32001
)

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type messageSendParams struct {
	Message  a2aMessage     `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type a2aMessage struct {
	Kind      string    `json:"kind"`
	Role      string    `json:"role"`
	MessageID string    `json:"messageId"`
	ContextID string    `json:"contextId,omitempty"`
	Parts     []a2aPart `json:"parts"`
}

type a2aPart struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// Server is an [http.Handler] serving one Runner.
type Server struct {
	runner  Runner
	apiKey  string
	baseURL string
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*af.Session
	mux      *http.ServeMux
}

// Option configures a [Server].
type Option func(*Server)

// WithAPIKey requires "Authorization: Bearer <key>" on /invoke and
// message/send.
func WithAPIKey(key string) Option {
	return func(s *Server) { s.apiKey = key }
}

// WithBaseURL sets the public URL advertised in the agent card. By default
// it is derived from the request and X-Forwarded-* headers.
func WithBaseURL(u string) Option {
	return func(s *Server) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server for r.
func New(r Runner, opts ...Option) *Server {
	s := &Server{
		runner:   r,
		sessions: make(map[string]*af.Session),
		mux:      http.NewServeMux(),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /.well-known/agent-card.json", s.handleAgentCard)
	s.mux.HandleFunc("GET /.well-known/agent.json", s.handleAgentCard)
	s.mux.HandleFunc("POST /invoke", s.handleInvoke)
	s.mux.HandleFunc("POST /{$}", s.handleA2A)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.DebugContext(r.Context(), "http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	schemes := []map[string]any{}
	if s.apiKey != "" {
		schemes = append(schemes, map[string]any{"scheme": "bearer"})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":               s.runner.Name(),
		"description":        s.runner.Description(),
		"url":                s.resolveBaseURL(r) + "/",
		"version":            "1.0.0",
		"defaultInputModes":  []string{"text"},
		"defaultOutputModes": []string{"text"},
		"capabilities":       map[string]any{"streaming": false},
		"authentication":     map[string]any{"schemes": schemes},
	})
}

func (s *Server) handleA2A(w http.ResponseWriter, r *http.Request) {
	var req jsonRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.WarnContext(r.Context(), "bad JSON-RPC request", "error", err)
		writeRPCError(w, nil, codeParseError, "Parse error")
		return
	}

	switch req.Method {
	case "message/send":
		s.handleMessageSend(w, r, &req)
	case "tasks/get":
		writeRPCError(w, req.ID, codeTaskNotFound, "Task not found (only synchronous message/send is supported)")
	default:
		writeRPCError(w, req.ID, codeMethodNotFound, "Method not found: "+req.Method)
	}
}

func (s *Server) handleMessageSend(w http.ResponseWriter, r *http.Request, req *jsonRPCRequest) {
	if !s.authorized(r) {
		writeRPCError(w, req.ID, codeAgentError, "Unauthorized")
		return
	}

	var params messageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, codeInvalidParams, "Invalid params")
		return
	}
	var texts []string
	for _, p := range params.Message.Parts {
		if p.Kind == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	if len(texts) == 0 {
		writeRPCError(w, req.ID, codeInvalidParams, "No text content in message")
		return
	}

	contextID := params.Message.ContextID
	resp, err := s.runner.Run(r.Context(),
		[]af.Message{af.NewUserMessage(strings.Join(texts, "\n"))},
		af.WithSession(s.session(contextID)),
	)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "agent error", "context_id", contextID, "error", err)
		writeRPCError(w, req.ID, codeAgentError, fmt.Sprintf("Agent error: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: a2aMessage{
			Kind:      "message",
			Role:      "agent",
			MessageID: uuid.NewString(),
			ContextID: contextID,
			Parts:     []a2aPart{{Kind: "text", Text: resp.Text()}},
		},
	})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Input == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input is required"})
		return
	}

	resp, err := s.runner.Run(r.Context(),
		[]af.Message{af.NewUserMessage(req.Input)},
		af.WithSession(s.session(req.ConversationID)),
	)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "agent error", "conversation_id", req.ConversationID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "agent execution failed"})
		return
	}

	writeJSON(w, http.StatusOK, InvokeResponse{
		Output:         resp.Text(),
		ConversationID: req.ConversationID,
		Usage:          resp.Usage,
	})
}

// session returns the session for id; an empty id gets a fresh one.
func (s *Server) session(id string) *af.Session {
	if id == "" {
		return s.runner.NewSession()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = s.runner.NewSession()
		s.sessions[id] = sess
	}
	return sess
}

func (s *Server) authorized(r *http.Request) bool {
	if s.apiKey == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.apiKey)) == 1
}

func (s *Server) resolveBaseURL(r *http.Request) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + host
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	writeJSON(w, http.StatusOK, jsonRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
