// Package xboxlive is the console identity broker client. It turns an
// identity platform access token into a console identity token, and that
// into a security token for the game service.
package xboxlive

import (
	"context"
	"errors"

	"github.com/wrale/game-session-auth/internal/autherr"
	"github.com/wrale/game-session-auth/internal/transport"
)

// Config holds broker endpoint configuration. Empty fields use the defaults.
type Config struct {
	UserAuthURL string
	XSTSAuthURL string
}

// Client calls the broker's user authentication and XSTS endpoints
type Client struct {
	http        *transport.Client
	userAuthURL string
	xstsAuthURL string
}

// NewClient creates a broker client
func NewClient(cfg Config, http *transport.Client) *Client {
	c := &Client{
		http:        http,
		userAuthURL: cfg.UserAuthURL,
		xstsAuthURL: cfg.XSTSAuthURL,
	}
	if c.userAuthURL == "" {
		c.userAuthURL = DefaultUserAuthURL
	}
	if c.xstsAuthURL == "" {
		c.xstsAuthURL = DefaultXSTSAuthURL
	}
	return c
}

// AuthenticateUser presents an identity platform access token as an RPS
// ticket and returns the console identity token
func (c *Client) AuthenticateUser(ctx context.Context, accessToken string) (*Response, error) {
	req := userAuthRequest{
		Properties: userAuthProperties{
			AuthMethod: authMethodRPS,
			SiteName:   userSiteName,
			RpsTicket:  rpsTicketPrefix + accessToken,
		},
		RelyingParty: UserRelyingParty,
		TokenType:    tokenTypeJWT,
	}
	return c.post(ctx, "authenticate user", c.userAuthURL, req)
}

// AuthorizeSecurityToken exchanges a console identity token for a security
// token scoped to the game service
func (c *Client) AuthorizeSecurityToken(ctx context.Context, userToken string) (*Response, error) {
	req := xstsRequest{
		Properties: xstsProperties{
			SandboxID:  retailSandbox,
			UserTokens: []string{userToken},
		},
		RelyingParty: GameRelyingParty,
		TokenType:    tokenTypeJWT,
	}
	return c.post(ctx, "authorize security token", c.xstsAuthURL, req)
}

func (c *Client) post(ctx context.Context, op, endpoint string, req any) (*Response, error) {
	var resp Response
	if err := c.http.PostJSON(ctx, autherr.ProviderBroker, op, endpoint, req, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, autherr.Decode(autherr.ProviderBroker, op, errors.New("response is missing Token"))
	}
	return &resp, nil
}
