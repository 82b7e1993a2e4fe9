// Package oauth provides the identity platform client that issues provider tokens
package oauth

import (
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// Common configuration errors
var (
	ErrMissingClientID = errors.New("client ID is required")
	ErrMissingCode     = errors.New("authorization code is required")
	ErrMissingRefresh  = errors.New("refresh token is required")
)

const (
	// DefaultAuthorityURL is the consumer tenant of the identity platform
	DefaultAuthorityURL = "https://login.microsoftonline.com/consumers"

	// DefaultScope requests console sign-in plus a refresh token
	DefaultScope = "XboxLive.signin offline_access"

	// DeviceCodeGrantType is the grant type for device token requests
	DeviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// DefaultPollInterval applies when the provider omits an interval
	DefaultPollInterval = 5 * time.Second
)

// ProviderToken is the token endpoint response. Only RefreshToken outlives
// the exchange that consumes it.
type ProviderToken struct {
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// OAuth2 converts the token for use with golang.org/x/oauth2 based clients.
// issuedAt is the time the token response was received.
func (t *ProviderToken) OAuth2(issuedAt time.Time) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       issuedAt.Add(time.Duration(t.ExpiresIn) * time.Second),
	}
}

// DeviceAuthorization is the device code endpoint response
type DeviceAuthorization struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int64  `json:"expires_in"` // Lifetime of the device code in seconds
	Interval        int64  `json:"interval"`   // Minimum seconds between polls
	Message         string `json:"message"`    // Human readable instructions
}

// Config holds identity platform client configuration
type Config struct {
	ClientID     string
	AuthorityURL string
	Scope        string
}
