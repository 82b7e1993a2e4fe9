package xboxlive

import (
	"errors"
	"time"
)

// ErrNoUserClaims is returned when a response carries no xui claims to read
// the user hash from
var ErrNoUserClaims = errors.New("response has no user claims")

const (
	// DefaultUserAuthURL authenticates a user with an identity platform ticket
	DefaultUserAuthURL = "https://user.auth.xboxlive.com/user/authenticate"

	// DefaultXSTSAuthURL authorizes a user token for a relying party
	DefaultXSTSAuthURL = "https://xsts.auth.xboxlive.com/xsts/authorize"

	// UserRelyingParty is the relying party of console identity tokens
	UserRelyingParty = "http://auth.xboxlive.com"

	// GameRelyingParty scopes security tokens to the game service
	GameRelyingParty = "rp://api.minecraftservices.com/"

	userSiteName    = "user.auth.xboxlive.com"
	retailSandbox   = "RETAIL"
	tokenTypeJWT    = "JWT"
	authMethodRPS   = "RPS"
	rpsTicketPrefix = "d="
)

type userAuthRequest struct {
	Properties   userAuthProperties `json:"Properties"`
	RelyingParty string             `json:"RelyingParty"`
	TokenType    string             `json:"TokenType"`
}

type userAuthProperties struct {
	AuthMethod string `json:"AuthMethod"`
	SiteName   string `json:"SiteName"`
	RpsTicket  string `json:"RpsTicket"`
}

type xstsRequest struct {
	Properties   xstsProperties `json:"Properties"`
	RelyingParty string         `json:"RelyingParty"`
	TokenType    string         `json:"TokenType"`
}

type xstsProperties struct {
	SandboxID  string   `json:"SandboxId"`
	UserTokens []string `json:"UserTokens"`
}

// Response is returned by both broker endpoints
type Response struct {
	IssueInstant  time.Time     `json:"IssueInstant"`
	NotAfter      time.Time     `json:"NotAfter"`
	Token         string        `json:"Token"`
	DisplayClaims DisplayClaims `json:"DisplayClaims"`
}

// DisplayClaims holds the per-user claims of a Response
type DisplayClaims struct {
	XUI []UserClaim `json:"xui"`
}

// UserClaim is one entry of the xui claims list
type UserClaim struct {
	UserHash string `json:"uhs"`
}

// UserHash returns the user hash of the first claim. The broker promises a
// non-empty list but an empty one is reported as ErrNoUserClaims.
func (r *Response) UserHash() (string, error) {
	if len(r.DisplayClaims.XUI) == 0 {
		return "", ErrNoUserClaims
	}
	uhs := r.DisplayClaims.XUI[0].UserHash
	if uhs == "" {
		return "", errors.New("first user claim has an empty user hash")
	}
	return uhs, nil
}
