package client

import (
	"net/http"
)

// AuthTransport wraps an http.RoundTripper to add Authorization headers
type AuthTransport struct {
	Base http.RoundTripper

	// Token returns the bearer token to send, or "" to send none
	Token func() string
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Token != nil {
		if token := t.Token(); token != "" {
			// Clone the request to avoid mutating the original
			req2 := req.Clone(req.Context())
			req2.Header.Set("Authorization", "Bearer "+token)
			req = req2
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(req)
}

// NewAuthTransport creates an AuthTransport sending a fixed token
func NewAuthTransport(token string) *AuthTransport {
	return &AuthTransport{
		Base:  http.DefaultTransport,
		Token: func() string { return token },
	}
}
