// Package auth acquires and caches Microsoft Entra ID access tokens for the
// Graph API using the OAuth2 client-credentials flow.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mailscan/internal/common/security"
)

const (
	// GraphScope is the scope for application permissions against Graph.
	GraphScope = "https://graph.microsoft.com/.default"

	// DefaultAuthority is the Entra ID login endpoint base.
	DefaultAuthority = "https://login.microsoftonline.com"

	// Tokens without an expires_in hint are assumed valid for one hour.
	defaultValidity = time.Hour

	// refreshMargin is subtracted from the validity window so a token is
	// never handed out moments before it expires server-side.
	refreshMargin = 5 * time.Minute
)

// Credential identifies the app registration used for the
// client-credentials flow. Loaded once, never mutated.
type Credential struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// TokenSource yields a bearer token for Graph requests. Implemented by
// TokenCache (client secret) and the certificate credential adapter.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// AuthError reports a token endpoint response that did not contain an
// access_token field. It is fatal: no Graph query can proceed without a token.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token endpoint returned no access_token (HTTP %d): %s", e.StatusCode, e.Body)
}

// Store persists an acquired token so the next process run can reuse it.
type Store interface {
	SaveToken(token string, acquiredAt time.Time) error
}

// CacheOptions tunes a TokenCache. The zero value selects the live Entra ID
// authority, the default HTTP client and the wall clock.
type CacheOptions struct {
	Authority  string           // token endpoint base URL, overridable for tests
	HTTPClient *http.Client
	Now        func() time.Time // injected clock
	Store      Store            // optional persistence hook
	Logger     *slog.Logger
}

// TokenCache holds one access token and refreshes it lazily. A cached token
// is served while it is younger than its validity window minus the refresh
// margin; past that, the next Token call performs exactly one refresh.
// Not safe for concurrent use; the scan fan-out is strictly sequential.
type TokenCache struct {
	cred      Credential
	authority string
	hc        *http.Client
	now       func() time.Time
	store     Store
	log       *slog.Logger

	token      string
	acquiredAt time.Time
	validity   time.Duration
}

// NewTokenCache creates a cache for the given app credential.
func NewTokenCache(cred Credential, opts *CacheOptions) *TokenCache {
	if opts == nil {
		opts = &CacheOptions{}
	}
	c := &TokenCache{
		cred:      cred,
		authority: opts.Authority,
		hc:        opts.HTTPClient,
		now:       opts.Now,
		store:     opts.Store,
		log:       opts.Logger,
		validity:  defaultValidity,
	}
	if c.authority == "" {
		c.authority = DefaultAuthority
	}
	if c.hc == nil {
		c.hc = http.DefaultClient
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Prime seeds the cache with a token persisted by a previous run. The token
// is trusted for the default validity window counted from acquiredAt; if that
// window has already passed, the next Token call refreshes as usual.
func (c *TokenCache) Prime(token string, acquiredAt time.Time) {
	if token == "" {
		return
	}
	c.token = token
	c.acquiredAt = acquiredAt
	c.validity = defaultValidity
}

// Token returns the cached access token, refreshing it first when it is
// missing or older than its validity window minus the refresh margin.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if c.token != "" && c.now().Sub(c.acquiredAt) < c.validity-refreshMargin {
		return c.token, nil
	}
	return c.refresh(ctx)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.authority, c.cred.TenantID)
	form := url.Values{
		"client_id":     {c.cred.ClientID},
		"scope":         {GraphScope},
		"client_secret": {c.cred.ClientSecret},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.log.Debug("requesting access token",
		"tenantID", security.MaskGUID(c.cred.TenantID),
		"clientID", security.MaskGUID(c.cred.ClientID))

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	c.token = tr.AccessToken
	c.acquiredAt = c.now()
	c.validity = defaultValidity
	if tr.ExpiresIn > 0 {
		c.validity = time.Duration(tr.ExpiresIn) * time.Second
	}

	c.log.Debug("access token acquired",
		"validFor", c.validity,
		"token", security.MaskAccessToken(c.token))

	if c.store != nil {
		// Persistence is best-effort; a read-only env file must not fail the run
		if err := c.store.SaveToken(c.token, c.acquiredAt); err != nil {
			c.log.Warn("could not persist access token", "error", err)
		}
	}

	return c.token, nil
}

// snippet bounds an error body for inclusion in an error message.
func snippet(body []byte) string {
	const max = 512
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
