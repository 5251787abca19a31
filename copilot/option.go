// Copyright (c) Microsoft. All rights reserved.

package copilot

import (
	"log/slog"
	"maps"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	af "github.com/agentcrew/copilot-agents/agentframework"
	"github.com/agentcrew/copilot-agents/config"
)

type clientConfig struct {
	baseURL        string
	model          string
	githubToken    string
	tokenURL       string
	credential     azcore.TokenCredential
	scopes         []string
	httpClient     *http.Client
	headers        map[string]string
	editorVersion  string
	integrationID  string
	timeout        time.Duration
	verbose        bool
	defaults       *af.ChatOptions
	chatMiddleware []af.ChatMiddleware
	logger         *slog.Logger
}

// Option configures a [Client].
type Option func(*clientConfig)

// WithConfig applies provider settings loaded by the config package.
// Options given after it override individual fields.
func WithConfig(cfg config.LLM) Option {
	return func(c *clientConfig) {
		if cfg.Model != "" {
			c.model = cfg.Model
		}
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.GitHubToken != "" {
			c.githubToken = cfg.GitHubToken
		}
		if cfg.EditorVersion != "" {
			c.editorVersion = cfg.EditorVersion
		}
		if cfg.CopilotIntegrationID != "" {
			c.integrationID = cfg.CopilotIntegrationID
		}
		if len(cfg.ExtraHeaders) > 0 {
			WithHeaders(cfg.ExtraHeaders)(c)
		}
		if cfg.Timeout > 0 {
			c.timeout = cfg.Timeout
		}
		c.verbose = c.verbose || cfg.Verbose
		c.defaults = af.MergeChatOptions(c.defaults, cfg.ChatOptions())
	}
}

// WithModel sets the model used when a request does not name one.
func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

// WithBaseURL overrides [DefaultBaseURL].
func WithBaseURL(url string) Option {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithHTTPClient sets the underlying http.Client. Its transport is wrapped,
// not replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithGitHubToken authenticates by exchanging a GitHub OAuth token for
// Copilot API tokens (see [GitHubCredential]).
func WithGitHubToken(token string) Option {
	return func(c *clientConfig) { c.githubToken = token }
}

// WithTokenExchangeURL overrides the GitHub token exchange endpoint.
func WithTokenExchangeURL(u string) Option {
	return func(c *clientConfig) { c.tokenURL = u }
}

// WithCredential authenticates with any azcore credential, e.g. an
// azidentity credential for a gateway fronted by Entra ID. It takes
// precedence over [WithGitHubToken].
func WithCredential(cred azcore.TokenCredential, scopes ...string) Option {
	return func(c *clientConfig) {
		c.credential = cred
		c.scopes = scopes
	}
}

// WithHeaders adds headers to every request. They are applied after the
// identification headers and may override them.
func WithHeaders(headers map[string]string) Option {
	return func(c *clientConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string, len(headers))
		}
		maps.Copy(c.headers, headers)
	}
}

// WithEditorVersion sets the Editor-Version header.
func WithEditorVersion(v string) Option {
	return func(c *clientConfig) { c.editorVersion = v }
}

// WithIntegrationID sets the Copilot-Integration-Id header.
func WithIntegrationID(id string) Option {
	return func(c *clientConfig) { c.integrationID = id }
}

// WithTimeout bounds each HTTP request, including reading a streamed body.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithVerbose logs every request and response status at debug level.
func WithVerbose(v bool) Option {
	return func(c *clientConfig) { c.verbose = v }
}

// WithDefaultOptions sets instance-level chat options. Request options
// override them.
func WithDefaultOptions(opts *af.ChatOptions) Option {
	return func(c *clientConfig) { c.defaults = af.MergeChatOptions(c.defaults, opts) }
}

// WithChatMiddleware wraps Response; the first middleware is outermost.
func WithChatMiddleware(mw ...af.ChatMiddleware) Option {
	return func(c *clientConfig) { c.chatMiddleware = append(c.chatMiddleware, mw...) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
