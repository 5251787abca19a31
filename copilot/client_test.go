// Copyright (c) Microsoft. All rights reserved.

package copilot_test

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

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/config"
	"github.com/agentcrew/copilot-agents/copilot"
)

// mockTransportFunc is a RoundTripper that delegates to a function.
type mockTransportFunc func(*http.Request) (*http.Response, error)

func (f mockTransportFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newMockHTTPClient(fn func(*http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{Transport: mockTransportFunc(fn)}
}

func jsonResponse(status int, body any) *http.Response {
	b, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(b)),
	}
}

func sseResponse(events ...string) *http.Response {
	var b strings.Builder
	for _, e := range events {
		b.WriteString("data: " + e + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return &http.Response{
		StatusCode: 200,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(b.String())),
	}
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-1",
		"model": "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
	}
}

func readBody(t *testing.T, req *http.Request) map[string]any {
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

func newTestClient(t *testing.T, fn func(*http.Request) (*http.Response, error), opts ...copilot.Option) *copilot.Client {
	t.Helper()
	base := []copilot.Option{
		copilot.WithCredential(copilot.StaticCredential("test-token")),
		copilot.WithHTTPClient(newMockHTTPClient(fn)),
	}
	c, err := copilot.New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClient_Response_Basic(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost {
			t.Errorf("method = %q", req.Method)
		}
		if req.URL.String() != copilot.DefaultBaseURL+"/chat/completions" {
			t.Errorf("url = %q", req.URL.String())
		}
		if got := req.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("auth = %q", got)
		}
		if got := req.Header.Get(copilot.HeaderEditorVersion); got != copilot.DefaultEditorVersion {
			t.Errorf("editor version = %q", got)
		}
		if got := req.Header.Get(copilot.HeaderIntegrationID); got != copilot.DefaultIntegrationID {
			t.Errorf("integration id = %q", got)
		}

		body := readBody(t, req)
		if body["model"] != "gpt-4o" {
			t.Errorf("model = %v", body["model"])
		}
		return jsonResponse(200, completion("hello")), nil
	})

	resp, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}

	if len(resp.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(resp.Messages))
	}
	if resp.Messages[0].Role != af.RoleAssistant {
		t.Errorf("role = %q", resp.Messages[0].Role)
	}
	if resp.Text() != "hello" {
		t.Errorf("text = %q", resp.Text())
	}
	if resp.ResponseID != "chatcmpl-1" {
		t.Errorf("response id = %q", resp.ResponseID)
	}
	if resp.FinishReason != af.FinishReasonStop {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestClient_Response_ToolCalls(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		body := readBody(t, req)
		tools, _ := body["tools"].([]any)
		if len(tools) != 1 {
			t.Errorf("tools = %v", body["tools"])
		}
		return jsonResponse(200, map[string]any{
			"id": "chatcmpl-2", "model": "gpt-4o",
			"choices": []map[string]any{{
				"index": 0, "finish_reason": "tool_calls",
				"message": map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []map[string]any{
						{"id": "call_a", "type": "function", "function": map[string]any{"name": "get_weather", "arguments": `{"location":"Paris"}`}},
						{"id": "call_b", "type": "function", "function": map[string]any{"name": "get_weather", "arguments": `{"location":"Rome"}`}},
					},
				},
			}},
		}), nil
	})

	tool := af.NewTool("get_weather", "Weather", nil, func(context.Context, json.RawMessage) (any, error) { return "sunny", nil })
	resp, err := client.Response(context.Background(),
		[]af.Message{af.NewUserMessage("weather?")},
		&af.ChatOptions{Tools: []af.Tool{tool}},
	)
	if err != nil {
		t.Fatalf("Response: %v", err)
	}
	if len(resp.Messages) != 3 {
		t.Fatalf("messages = %d, want text + 2 calls", len(resp.Messages))
	}
	for i, want := range []string{"call_a", "call_b"} {
		m := resp.Messages[i+1]
		if m.FunctionID() != want {
			t.Errorf("[%d] function id = %q, want %q", i+1, m.FunctionID(), want)
		}
	}
	if resp.FinishReason != af.FinishReasonToolCalls {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
}

func TestClient_Response_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
		want   error
	}{
		{
			name:   "unauthorized",
			status: 401,
			body:   map[string]any{"error": map[string]any{"message": "bad token", "type": "authentication_error"}},
			want:   af.ErrAuth,
		},
		{
			name:   "content filter",
			status: 400,
			body:   map[string]any{"error": map[string]any{"message": "filtered", "code": "content_filter"}},
			want:   af.ErrContentFilter,
		},
		{
			name:   "bad request",
			status: 400,
			body:   map[string]any{"error": map[string]any{"message": "bad model"}},
			want:   af.ErrInvalidRequest,
		},
		{
			name:   "server error",
			status: 500,
			body:   map[string]any{"error": map[string]any{"message": "boom"}},
			want:   af.ErrService,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return jsonResponse(tc.status, tc.body), nil
			})

			_, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil)
			if err == nil {
				t.Fatal("expected error")
			}
			var svcErr *af.ServiceError
			if !errors.As(err, &svcErr) {
				t.Fatalf("error %T is not a ServiceError", err)
			}
			if svcErr.StatusCode != tc.status {
				t.Errorf("StatusCode = %d", svcErr.StatusCode)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("error %v is not %v", err, tc.want)
			}
		})
	}
}

func TestClient_Response_TransportError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return nil, cause
	})

	_, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil)
	if !errors.Is(err, af.ErrService) {
		t.Fatalf("err = %v, want ErrService", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not reachable from %v", err)
	}
}

func TestClient_ModelPrefixStripped(t *testing.T) {
	var model any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		model = readBody(t, req)["model"]
		return jsonResponse(200, completion("ok")), nil
	}, copilot.WithModel("github_copilot/claude-3.5-sonnet"))

	if _, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil); err != nil {
		t.Fatal(err)
	}
	if model != "claude-3.5-sonnet" {
		t.Errorf("model = %v", model)
	}

	if _, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")},
		&af.ChatOptions{ModelID: "github_copilot/gemini-2.0-flash"}); err != nil {
		t.Fatal(err)
	}
	if model != "gemini-2.0-flash" {
		t.Errorf("request model = %v", model)
	}
}

func TestClient_ParametersPassedThrough(t *testing.T) {
	var sent map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		sent = readBody(t, req)
		return jsonResponse(200, completion("ok")), nil
	}, copilot.WithDefaultOptions(&af.ChatOptions{
		MaxTokens: af.Int(256),
		Extra:     map[string]any{"top_k": 5, "lang": "en"},
	}))

	_, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, &af.ChatOptions{
		Temperature: af.Float64(0.3),
		Extra: map[string]any{
			"max_retries":             3,
			"parallel_function_calls": true,
			"max_input_tokens":        1000,
			"repetition_penalty":      1.1,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if sent["max_tokens"] != float64(256) {
		t.Errorf("max_tokens = %v", sent["max_tokens"])
	}
	if sent["temperature"] != 0.3 {
		t.Errorf("temperature = %v", sent["temperature"])
	}
	if sent["top_k"] != float64(5) {
		t.Errorf("top_k = %v", sent["top_k"])
	}
	if sent["repetition_penalty"] != 1.1 {
		t.Errorf("repetition_penalty = %v", sent["repetition_penalty"])
	}
	for _, k := range []string{"lang", "max_retries", "parallel_function_calls", "max_input_tokens", "stream", "delta_stream"} {
		if _, ok := sent[k]; ok {
			t.Errorf("%s forwarded: %v", k, sent[k])
		}
	}
}

func TestClient_ZeroTemperatureViaExtra(t *testing.T) {
	var sent map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		sent = readBody(t, req)
		return jsonResponse(200, completion("ok")), nil
	})

	_, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")},
		&af.ChatOptions{Extra: map[string]any{"temperature": 0}})
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := sent["temperature"]; !ok || v != float64(0) {
		t.Errorf("temperature = %v (present %v)", v, ok)
	}
}

func TestClient_ZeroSamplingParameters(t *testing.T) {
	var sent map[string]any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		sent = readBody(t, req)
		return jsonResponse(200, completion("ok")), nil
	})

	zero, half := 0.0, 0.5
	_, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, &af.ChatOptions{
		Temperature:     &zero,
		TopP:            &half,
		PresencePenalty: &zero,
		Extra:           map[string]any{"temperature": 0.9},
	})
	if err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]float64{"temperature": 0, "top_p": 0.5, "presence_penalty": 0} {
		if v, ok := sent[key]; !ok || v != want {
			t.Errorf("%s = %v (present %v), want %v", key, v, ok, want)
		}
	}
	if _, ok := sent["frequency_penalty"]; ok {
		t.Error("unset frequency_penalty was sent")
	}
}

func TestClient_ConversationHistory(t *testing.T) {
	var msgs []any
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		msgs, _ = readBody(t, req)["messages"].([]any)
		return jsonResponse(200, completion("It is sunny.")), nil
	})

	history := []af.Message{
		af.NewNamedUserMessage("Ada Lovelace", "weather in Paris?"),
	}
	history = append(history, af.AssembleMessages(af.RoleAssistant, "Let me check.", "", []*af.FunctionCallContent{
		{CallID: "call_1", Name: "get_weather", Arguments: `{"location":"Paris"}`},
	})...)
	history = append(history, af.NewToolMessage("call_1", map[string]any{"temp": 21}))

	_, err := client.Response(context.Background(), history, &af.ChatOptions{Instructions: "Be brief."})
	if err != nil {
		t.Fatal(err)
	}

	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want system, user, assistant, tool", len(msgs))
	}
	system := msgs[0].(map[string]any)
	if system["role"] != "system" || system["content"] != "Be brief." {
		t.Errorf("system = %v", system)
	}
	user := msgs[1].(map[string]any)
	if user["name"] != "Ada_Lovelace" {
		t.Errorf("user name = %v", user["name"])
	}
	assistant := msgs[2].(map[string]any)
	if assistant["content"] != "Let me check." {
		t.Errorf("assistant content = %v", assistant["content"])
	}
	calls, _ := assistant["tool_calls"].([]any)
	if len(calls) != 1 {
		t.Fatalf("tool_calls = %v", assistant["tool_calls"])
	}
	tool := msgs[3].(map[string]any)
	if tool["tool_call_id"] != "call_1" || tool["content"] != `{"temp":21}` {
		t.Errorf("tool = %v", tool)
	}
}

func TestClient_StreamResponse(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		body := readBody(t, req)
		if body["stream"] != true {
			t.Errorf("stream = %v", body["stream"])
		}
		return sseResponse(
			`{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"},"finish_reason":null}]}`,
			`{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"delta":{"content":", world!"},"finish_reason":null}]}`,
			`{"id":"chatcmpl-1","model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
			`{"id":"chatcmpl-1","model":"gpt-4o","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`,
		), nil
	})

	stream, err := client.StreamResponse(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("StreamResponse: %v", err)
	}
	defer stream.Close()

	updates, err := stream.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(updates) != 3 {
		t.Fatalf("updates = %d, want 2 deltas and a final update", len(updates))
	}
	if updates[0].Text() != "Hello" || updates[1].Text() != ", world!" {
		t.Errorf("deltas = %q, %q", updates[0].Text(), updates[1].Text())
	}

	final := updates[2]
	if final.FinishReason != af.FinishReasonStop {
		t.Errorf("finish reason = %q", final.FinishReason)
	}
	if final.Usage.TotalTokens != 8 {
		t.Errorf("usage = %+v", final.Usage)
	}

	resp := af.ChatResponseFromUpdates(updates)
	if resp.Text() != "Hello, world!" {
		t.Errorf("merged text = %q", resp.Text())
	}
}

func TestClient_StreamResponse_ToolCalls(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return sseResponse(
			`{"id":"c","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_x","type":"function","function":{"name":"get_time","arguments":""}}]}}]}`,
			`{"id":"c","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"tz\":"}}]}}]}`,
			`{"id":"c","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"UTC\"}"}}]},"finish_reason":"tool_calls"}]}`,
		), nil
	})

	stream, err := client.StreamResponse(context.Background(), []af.Message{af.NewUserMessage("time?")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	updates, err := stream.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	resp := af.ChatResponseFromUpdates(updates)
	if len(resp.Messages) != 2 {
		t.Fatalf("messages = %d", len(resp.Messages))
	}
	fc := resp.Messages[1].FunctionCalls()[0]
	if fc.CallID != "call_x" || fc.Name != "get_time" || fc.Arguments != `{"tz":"UTC"}` {
		t.Errorf("call = %+v", fc)
	}
}

func TestClient_Chat_Modes(t *testing.T) {
	deltas := func(*http.Request) (*http.Response, error) {
		return sseResponse(
			`{"id":"s","choices":[{"index":0,"delta":{"role":"assistant","content":"He"}}]}`,
			`{"id":"s","choices":[{"index":0,"delta":{"content":"llo"}}]}`,
		), nil
	}

	tests := []struct {
		name  string
		extra map[string]any
		fn    func(*http.Request) (*http.Response, error)
		mode  copilot.StreamMode
		want  []string
	}{
		{
			name:  "accumulated",
			extra: map[string]any{"stream": true},
			fn:    deltas,
			mode:  copilot.AccumulatedMode,
			want:  []string{"He", "Hello"},
		},
		{
			name:  "delta",
			extra: map[string]any{"stream": true, "delta_stream": true},
			fn:    deltas,
			mode:  copilot.DeltaMode,
			want:  []string{"He", "llo"},
		},
		{
			name: "single shot",
			fn: func(*http.Request) (*http.Response, error) {
				return jsonResponse(200, completion("Hello")), nil
			},
			mode: copilot.AccumulatedMode,
			want: []string{"Hello"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.fn)
			stream, err := client.Chat(context.Background(), []af.Message{af.NewUserMessage("hi")},
				&af.ChatOptions{Extra: tc.extra})
			if err != nil {
				t.Fatal(err)
			}
			defer stream.Close()
			if stream.Mode() != tc.mode {
				t.Errorf("mode = %v", stream.Mode())
			}

			var got []string
			for {
				msgs, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatal(err)
				}
				if len(msgs) != 1 {
					t.Fatalf("emission = %d messages", len(msgs))
				}
				got = append(got, msgs[0].Text())
			}
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Errorf("emissions = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClient_Response_StreamExtraCollects(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if readBody(t, req)["stream"] != true {
			t.Error("expected a streaming request")
		}
		return sseResponse(
			`{"id":"s","choices":[{"index":0,"delta":{"role":"assistant","content":"He"}}]}`,
			`{"id":"s","choices":[{"index":0,"delta":{"content":"llo"},"finish_reason":"stop"}]}`,
		), nil
	}, copilot.WithDefaultOptions(&af.ChatOptions{Extra: map[string]any{"stream": true}}))

	resp, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text() != "Hello" || len(resp.Messages) != 1 {
		t.Errorf("messages = %+v", resp.Messages)
	}
	if resp.ResponseID != "s" {
		t.Errorf("response id = %q", resp.ResponseID)
	}
}

func TestClient_StreamFailureBeforeFirstChunk(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(503, map[string]any{"error": map[string]any{"message": "overloaded"}}), nil
	})

	_, err := client.StreamMessages(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil, copilot.DeltaMode)
	var svcErr *af.ServiceError
	if !errors.As(err, &svcErr) || svcErr.StatusCode != 503 {
		t.Fatalf("err = %v", err)
	}
}

func TestClient_ChatMiddleware(t *testing.T) {
	var calls []string
	mw := func(next af.ChatHandler) af.ChatHandler {
		return func(ctx context.Context, msgs []af.Message, opts *af.ChatOptions) (*af.ChatResponse, error) {
			calls = append(calls, "before")
			resp, err := next(ctx, msgs, opts)
			calls = append(calls, "after")
			return resp, err
		}
	}
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		calls = append(calls, "http")
		return jsonResponse(200, completion("ok")), nil
	}, copilot.WithChatMiddleware(mw))

	if _, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil); err != nil {
		t.Fatal(err)
	}
	if strings.Join(calls, ",") != "before,http,after" {
		t.Errorf("calls = %v", calls)
	}
}

func TestClient_CustomHeaders(t *testing.T) {
	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get(copilot.HeaderEditorVersion); got != "Neovim/0.9.5" {
			t.Errorf("editor version = %q", got)
		}
		if got := req.Header.Get(copilot.HeaderIntegrationID); got != "copilot-agents" {
			t.Errorf("integration id = %q", got)
		}
		if got := req.Header.Get("X-Request-Source"); got != "ci" {
			t.Errorf("custom header = %q", got)
		}
		return jsonResponse(200, completion("ok")), nil
	},
		copilot.WithEditorVersion("Neovim/0.9.5"),
		copilot.WithIntegrationID("copilot-agents"),
		copilot.WithHeaders(map[string]string{"X-Request-Source": "ci"}),
	)

	if _, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestNew_RequiresCredential(t *testing.T) {
	_, err := copilot.New(copilot.WithModel("gpt-4o"))
	if !errors.Is(err, af.ErrInitialization) {
		t.Fatalf("err = %v, want ErrInitialization", err)
	}
}

func TestClient_GitHubTokenExchange(t *testing.T) {
	const tokenURL = "https://github.test/copilot_internal/v2/token"
	var exchanges atomic.Int32

	httpClient := newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.String() == tokenURL {
			exchanges.Add(1)
			if got := req.Header.Get("Authorization"); got != "token gho_abc" {
				t.Errorf("exchange auth = %q", got)
			}
			return jsonResponse(200, map[string]any{
				"token":      "tid=copilot",
				"expires_at": time.Now().Add(30 * time.Minute).Unix(),
				"refresh_in": 1500,
			}), nil
		}
		if got := req.Header.Get("Authorization"); got != "Bearer tid=copilot" {
			t.Errorf("chat auth = %q", got)
		}
		return jsonResponse(200, completion("ok")), nil
	})

	client, err := copilot.NewFromConfig(config.LLM{
		Model:       "github_copilot/gpt-4o",
		GitHubToken: "gho_abc",
	}, copilot.WithHTTPClient(httpClient), copilot.WithTokenExchangeURL(tokenURL))
	if err != nil {
		t.Fatal(err)
	}

	for range 3 {
		if _, err := client.Response(context.Background(), []af.Message{af.NewUserMessage("hi")}, nil); err != nil {
			t.Fatal(err)
		}
	}
	if n := exchanges.Load(); n != 1 {
		t.Errorf("exchanges = %d, want 1", n)
	}
}

func TestClient_Options_Precedence(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, completion("ok")), nil
	},
		copilot.WithModel("github_copilot/gpt-4o-mini"),
		copilot.WithDefaultOptions(&af.ChatOptions{Temperature: af.Float64(0.2), MaxTokens: af.Int(100)}),
	)

	merged := client.Options(&af.ChatOptions{Temperature: af.Float64(0.9)})
	if merged.ModelID != "github_copilot/gpt-4o-mini" {
		t.Errorf("model = %q", merged.ModelID)
	}
	if *merged.Temperature != 0.9 {
		t.Errorf("temperature = %v", *merged.Temperature)
	}
	if *merged.MaxTokens != 100 {
		t.Errorf("max tokens = %v", *merged.MaxTokens)
	}

	if got := client.Options(nil).ModelID; got != "github_copilot/gpt-4o-mini" {
		t.Errorf("default model = %q", got)
	}
}
