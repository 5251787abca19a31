// Copyright (c) Microsoft. All rights reserved.

package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"golang.org/x/oauth2"

	af "github.com/agentcrew/copilot-agents/agentframework"
)

// DefaultTokenURL is the endpoint that exchanges a GitHub token for a
// short-lived Copilot API token.
const DefaultTokenURL = "https://api.github.com/copilot_internal/v2/token"

// tokenExpiryDelta refreshes tokens this long before they expire.
const tokenExpiryDelta = 2 * time.Minute

// GitHubCredential is an [azcore.TokenCredential] that exchanges a GitHub
// OAuth token for a Copilot API token and caches it until shortly before
// it expires. Scopes are ignored.
type GitHubCredential struct {
	githubToken   string
	tokenURL      string
	httpClient    *http.Client
	editorVersion string

	mu     sync.Mutex
	source oauth2.TokenSource
	exch   *exchangeSource
}

var _ azcore.TokenCredential = (*GitHubCredential)(nil)

// CredentialOption configures a [GitHubCredential].
type CredentialOption func(*GitHubCredential)

// WithTokenURL overrides [DefaultTokenURL].
func WithTokenURL(u string) CredentialOption {
	return func(c *GitHubCredential) { c.tokenURL = u }
}

// WithTokenHTTPClient sets the client used for the exchange.
func WithTokenHTTPClient(hc *http.Client) CredentialOption {
	return func(c *GitHubCredential) { c.httpClient = hc }
}

// NewGitHubCredential returns a credential for githubToken.
func NewGitHubCredential(githubToken string, opts ...CredentialOption) (*GitHubCredential, error) {
	if githubToken == "" {
		return nil, fmt.Errorf("%w: github token is empty", af.ErrInitialization)
	}
	c := &GitHubCredential{
		githubToken:   githubToken,
		tokenURL:      DefaultTokenURL,
		httpClient:    http.DefaultClient,
		editorVersion: DefaultEditorVersion,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// GetToken returns the cached Copilot token, exchanging a new one when it
// is missing or about to expire. Calls are serialized so the exchange runs
// with the current caller's context.
func (c *GitHubCredential) GetToken(ctx context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == nil {
		c.exch = &exchangeSource{cred: c}
		c.source = oauth2.ReuseTokenSourceWithExpiry(nil, c.exch, tokenExpiryDelta)
	}
	c.exch.ctx = ctx
	tok, err := c.source.Token()
	c.exch.ctx = nil
	if err != nil {
		return azcore.AccessToken{}, err
	}
	return azcore.AccessToken{Token: tok.AccessToken, ExpiresOn: tok.Expiry}, nil
}

type copilotTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	RefreshIn int64  `json:"refresh_in"`
}

// exchangeSource adapts the exchange to oauth2.TokenSource.
type exchangeSource struct {
	cred *GitHubCredential
	ctx  context.Context
}

func (s *exchangeSource) Token() (*oauth2.Token, error) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return s.cred.exchange(ctx)
}

func (c *GitHubCredential) exchange(ctx context.Context) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tokenURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build token request: %w", af.ErrInitialization, err)
	}
	req.Header.Set("Authorization", "token "+c.githubToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderEditorVersion, c.editorVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &af.ServiceError{Message: "copilot token exchange: " + err.Error(), Err: af.ErrAuth, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &af.ServiceError{StatusCode: resp.StatusCode, Message: "read token response", Err: af.ErrAuth, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &af.ServiceError{
			StatusCode: resp.StatusCode,
			Message:    "copilot token exchange failed: " + string(body),
			Err:        af.ErrAuth,
		}
	}

	var tr copilotTokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &af.ServiceError{StatusCode: resp.StatusCode, Message: "decode token response", Err: af.ErrAuth, Cause: err}
	}
	if tr.Token == "" {
		return nil, &af.ServiceError{StatusCode: resp.StatusCode, Message: "token response has no token", Err: af.ErrAuth, Cause: errors.New("empty token")}
	}

	tok := &oauth2.Token{AccessToken: tr.Token, TokenType: "Bearer"}
	if tr.ExpiresAt > 0 {
		tok.Expiry = time.Unix(tr.ExpiresAt, 0)
	}
	return tok, nil
}

// StaticCredential serves a fixed Copilot API token, for gateways that
// accept long-lived tokens and for tests.
type StaticCredential string

func (s StaticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if s == "" {
		return azcore.AccessToken{}, &af.ServiceError{Message: "empty static token", Err: af.ErrAuth}
	}
	return azcore.AccessToken{Token: string(s), ExpiresOn: time.Now().Add(time.Hour)}, nil
}
