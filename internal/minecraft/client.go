// Package minecraft is the game service authenticator client
package minecraft

import (
	"context"
	"errors"
	"fmt"

	"github.com/wrale/game-session-auth/internal/autherr"
	"github.com/wrale/game-session-auth/internal/transport"
)

// DefaultLoginURL exchanges a security token for a game session token
const DefaultLoginURL = "https://api.minecraftservices.com/authentication/login_with_xbox"

type loginRequest struct {
	IdentityToken string `json:"identityToken"`
}

// LoginResponse is the login_with_xbox response
type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
}

// Client calls the game service authenticator
type Client struct {
	http     *transport.Client
	loginURL string
}

// NewClient creates a game service client. An empty loginURL uses
// DefaultLoginURL.
func NewClient(loginURL string, http *transport.Client) *Client {
	if loginURL == "" {
		loginURL = DefaultLoginURL
	}
	return &Client{http: http, loginURL: loginURL}
}

// IdentityToken formats the identity assertion for a security token
func IdentityToken(userHash, token string) string {
	return fmt.Sprintf("XBL3.0 x=%s;%s", userHash, token)
}

// LoginWithXbox presents a security token and returns a game session token
func (c *Client) LoginWithXbox(ctx context.Context, userHash, securityToken string) (*LoginResponse, error) {
	const op = "login with xbox"

	var resp LoginResponse
	req := loginRequest{IdentityToken: IdentityToken(userHash, securityToken)}
	if err := c.http.PostJSON(ctx, autherr.ProviderGame, op, c.loginURL, req, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		return nil, autherr.Decode(autherr.ProviderGame, op, errors.New("response is missing access_token"))
	}
	if resp.ExpiresIn <= 0 {
		return nil, autherr.Decode(autherr.ProviderGame, op, fmt.Errorf("non-positive expires_in %d", resp.ExpiresIn))
	}
	return &resp, nil
}
