package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/wrale/game-session-auth/internal/autherr"
	"github.com/wrale/game-session-auth/internal/transport"
)

const (
	// Identity platform endpoint paths, relative to the authority
	authorizePath  = "/oauth2/v2.0/authorize"
	tokenPath      = "/oauth2/v2.0/token"
	deviceCodePath = "/oauth2/v2.0/devicecode"
)

// Client talks to the identity platform token and device code endpoints
type Client struct {
	http          *transport.Client
	oauth         *oauth2.Config
	clientID      string
	scope         string
	deviceCodeURL string
}

// NewClient creates a new identity platform client
func NewClient(cfg Config, http *transport.Client) (*Client, error) {
	// Validate required fields
	if cfg.ClientID == "" {
		return nil, ErrMissingClientID
	}
	authority := cfg.AuthorityURL
	if authority == "" {
		authority = DefaultAuthorityURL
	}
	scope := cfg.Scope
	if scope == "" {
		scope = DefaultScope
	}

	// Clean and validate authority URL
	authority = strings.TrimSuffix(authority, "/")
	if _, err := url.Parse(authority); err != nil {
		return nil, fmt.Errorf("invalid authority URL: %w", err)
	}

	return &Client{
		http: http,
		oauth: &oauth2.Config{
			ClientID: cfg.ClientID,
			Scopes:   strings.Fields(scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:       authority + authorizePath,
				TokenURL:      authority + tokenPath,
				DeviceAuthURL: authority + deviceCodePath,
				AuthStyle:     oauth2.AuthStyleInParams,
			},
		},
		clientID:      cfg.ClientID,
		scope:         scope,
		deviceCodeURL: authority + deviceCodePath,
	}, nil
}

// Endpoint returns the identity platform endpoints in use
func (c *Client) Endpoint() oauth2.Endpoint {
	return c.oauth.Endpoint
}

// LoginURL returns the URL a user's browser visits to sign in. It performs
// no I/O and yields the same URL for the same inputs. An empty state is
// omitted.
func (c *Client) LoginURL(redirectURI, state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
}

// ExchangeCode exchanges an authorization code for tokens. Codes are single
// use, so a failed exchange is never retried.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*ProviderToken, error) {
	if code == "" {
		return nil, ErrMissingCode
	}
	data := url.Values{
		"client_id":    {c.clientID},
		"code":         {code},
		"scope":        {c.scope},
		"grant_type":   {"authorization_code"},
		"redirect_uri": {redirectURI},
	}
	return c.requestToken(ctx, "exchange code", data, true)
}

// RefreshToken exchanges a refresh token for a new provider token. The
// returned RefreshToken may differ from the one presented, or be empty if the
// provider did not rotate it.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*ProviderToken, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefresh
	}
	data := url.Values{
		"client_id":     {c.clientID},
		"scope":         {c.scope},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}
	return c.requestToken(ctx, "refresh token", data, false)
}

// RequestDeviceCode starts a device authorization
func (c *Client) RequestDeviceCode(ctx context.Context) (*DeviceAuthorization, error) {
	const op = "request device code"
	data := url.Values{
		"client_id": {c.clientID},
		"scope":     {c.scope},
	}

	var auth DeviceAuthorization
	if err := c.http.PostForm(ctx, autherr.ProviderIdentity, op, c.deviceCodeURL, data, &auth); err != nil {
		return nil, err
	}
	if auth.DeviceCode == "" || auth.UserCode == "" {
		return nil, autherr.Decode(autherr.ProviderIdentity, op, errors.New("response is missing device or user code"))
	}
	if auth.ExpiresIn <= 0 {
		return nil, autherr.Decode(autherr.ProviderIdentity, op, fmt.Errorf("non-positive expires_in %d", auth.ExpiresIn))
	}
	if auth.Interval < 0 {
		return nil, autherr.Decode(autherr.ProviderIdentity, op, fmt.Errorf("negative interval %d", auth.Interval))
	}
	return &auth, nil
}

// RequestDeviceToken makes a single device token request. Pending and
// declined authorizations surface as provider rejections.
func (c *Client) RequestDeviceToken(ctx context.Context, deviceCode string) (*ProviderToken, error) {
	data := url.Values{
		"client_id":   {c.clientID},
		"grant_type":  {DeviceCodeGrantType},
		"device_code": {deviceCode},
	}
	return c.requestToken(ctx, "poll device token", data, true)
}

func (c *Client) requestToken(ctx context.Context, op string, data url.Values, requireRefresh bool) (*ProviderToken, error) {
	var token ProviderToken
	if err := c.http.PostForm(ctx, autherr.ProviderIdentity, op, c.oauth.Endpoint.TokenURL, data, &token); err != nil {
		return nil, err
	}

	// Check the response carries everything the chain needs
	switch {
	case token.AccessToken == "":
		return nil, autherr.Decode(autherr.ProviderIdentity, op, errors.New("response is missing access_token"))
	case token.ExpiresIn <= 0:
		return nil, autherr.Decode(autherr.ProviderIdentity, op, fmt.Errorf("non-positive expires_in %d", token.ExpiresIn))
	case requireRefresh && token.RefreshToken == "":
		return nil, autherr.Decode(autherr.ProviderIdentity, op, errors.New("response is missing refresh_token"))
	}
	return &token, nil
}
