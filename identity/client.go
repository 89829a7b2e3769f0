// Package identity resolves caller-supplied bearer tokens against an
// OpenID Connect userinfo endpoint. It implements
// caseauth.IdentityProvider.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/casecurate/caseauth"
)

// Config holds the userinfo endpoint settings.
type Config struct {
	// UserInfoURL is the provider's userinfo endpoint.
	UserInfoURL string
	// Timeout bounds one lookup; defaults to 5s.
	Timeout time.Duration
}

// Client queries the userinfo endpoint with the caller's bearer token.
type Client struct {
	config Config
	http   *http.Client
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.UserInfoURL == "" {
		return nil, errors.New("userinfo url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type userInfoResponse struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// UserInfo exchanges the bearer token for the provider's claim set. Any
// non-200 answer fails closed: a rejected token maps to
// [caseauth.ErrUnauthorized], everything else to [caseauth.ErrUpstream].
func (c *Client) UserInfo(ctx context.Context, bearerToken string) (*caseauth.UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", caseauth.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, caseauth.ErrUnauthorized
	default:
		return nil, fmt.Errorf("%w: userinfo status %d", caseauth.ErrUpstream, resp.StatusCode)
	}

	var body userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %v", caseauth.ErrUpstream, err)
	}
	return &caseauth.UserInfo{
		Subject:       body.Subject,
		Email:         body.Email,
		EmailVerified: body.EmailVerified,
	}, nil
}
