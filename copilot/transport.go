// Copyright (c) Microsoft. All rights reserved.

package copilot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// Headers the Copilot API requires on every request.
const (
	HeaderEditorVersion = "Editor-Version"
	HeaderIntegrationID = "Copilot-Integration-Id"

	DefaultEditorVersion = "vscode/1.85.0"
	DefaultIntegrationID = "vscode-chat"
)

// headerTransport authorizes each request, adds the identification headers
// and merges passthrough parameters into the JSON body.
type headerTransport struct {
	base       http.RoundTripper
	credential azcore.TokenCredential
	scopes     []string
	headers    map[string]string
	verbose    bool
	logger     *slog.Logger
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	tok, err := t.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: t.scopes})
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	r := req.Clone(ctx)
	r.Header.Set("Authorization", "Bearer "+tok.Token)
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}

	if extra := passthroughFrom(ctx); len(extra) > 0 && r.Body != nil {
		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		merged, err := mergeBody(body, extra)
		if err != nil {
			return nil, err
		}
		r.Body = io.NopCloser(bytes.NewReader(merged))
		r.ContentLength = int64(len(merged))
		r.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(merged)), nil
		}
	}

	if t.verbose {
		t.logger.DebugContext(ctx, "copilot request",
			"method", r.Method,
			"url", r.URL.String(),
			"content_length", r.ContentLength,
			"passthrough", len(passthroughFrom(ctx)),
		)
	}

	resp, err := t.base.RoundTrip(r)
	if err == nil && t.verbose {
		t.logger.DebugContext(ctx, "copilot response", "status", resp.StatusCode)
	}
	return resp, err
}

// mergeBody adds extra keys to a JSON object body. Keys already present
// are left untouched.
func mergeBody(body []byte, extra map[string]any) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	for k, v := range extra {
		if _, exists := obj[k]; exists {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode parameter %q: %w", k, err)
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}

type passthroughKey struct{}

func withPassthrough(ctx context.Context, extra map[string]any) context.Context {
	if len(extra) == 0 {
		return ctx
	}
	return context.WithValue(ctx, passthroughKey{}, extra)
}

func passthroughFrom(ctx context.Context) map[string]any {
	m, _ := ctx.Value(passthroughKey{}).(map[string]any)
	return m
}
