// Package credentials provides the session credential the chat service
// authenticates with: the _U cookie issued to a signed-in browser.
package credentials

import (
	"context"
	"net/http"
)

// DefaultCookieName is the cookie that carries the session credential.
const DefaultCookieName = "_U"

// Credential applies authentication to HTTP requests, including the request
// used for the WebSocket handshake.
type Credential interface {
	// Apply adds authentication to the HTTP request.
	Apply(ctx context.Context, req *http.Request) error

	// Type returns the credential type identifier.
	Type() string
}

// CookieCredential authenticates by attaching a single cookie.
type CookieCredential struct {
	name  string
	value string
}

// CookieOption configures a CookieCredential.
type CookieOption func(*CookieCredential)

// WithCookieName overrides the cookie name.
func WithCookieName(name string) CookieOption {
	return func(c *CookieCredential) {
		c.name = name
	}
}

// NewCookieCredential creates a cookie credential named _U unless overridden.
func NewCookieCredential(value string, opts ...CookieOption) *CookieCredential {
	c := &CookieCredential{name: DefaultCookieName, value: value}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply adds the cookie to the request.
func (c *CookieCredential) Apply(_ context.Context, req *http.Request) error {
	if c.value != "" {
		req.AddCookie(&http.Cookie{Name: c.name, Value: c.value})
	}
	return nil
}

// Type returns "cookie".
func (c *CookieCredential) Type() string {
	return "cookie"
}

// Value returns the raw cookie value.
func (c *CookieCredential) Value() string {
	return c.value
}

// NoOpCredential sends requests unauthenticated. Used in tests against local servers.
type NoOpCredential struct{}

// Apply does nothing.
func (c *NoOpCredential) Apply(_ context.Context, _ *http.Request) error {
	return nil
}

// Type returns "none".
func (c *NoOpCredential) Type() string {
	return "none"
}

// Headers returns the headers cred would add to a request for rawURL. It is
// used to authenticate handshakes that are not issued through an http.Client.
func Headers(ctx context.Context, cred Credential, rawURL string) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	if err := cred.Apply(ctx, req); err != nil {
		return nil, err
	}
	return req.Header, nil
}
