// Package redirect serves the browser sign-in path: building the login URL
// and redeeming the code the browser brings back.
package redirect

import (
	"context"
	"errors"
	"net/http"

	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/common"
	"github.com/wrale/game-session-auth/internal/account"
	"github.com/wrale/game-session-auth/internal/login"
	"github.com/wrale/game-session-auth/internal/oauth"
)

// Identity builds login URLs and redeems authorization codes
type Identity interface {
	LoginURL(redirectURI, state string) string
	login.CodeExchanger
}

// BundleCreator turns a provider token into a credential bundle
type BundleCreator interface {
	Create(ctx context.Context, token *oauth.ProviderToken) (*account.Bundle, error)
}

// Config contains handler dependencies. RedirectURI is used when a request
// does not name one.
type Config struct {
	Identity    Identity
	Accounts    BundleCreator
	RedirectURI string
}

// URLResponse carries the URL the user's browser should open
type URLResponse struct {
	URL string `json:"url"`
}

// URLHandler answers GET /login/url
type URLHandler struct {
	cfg Config
}

// NewURLHandler creates a login URL handler
func NewURLHandler(cfg Config) *URLHandler {
	return &URLHandler{cfg: cfg}
}

// ServeHTTP returns the login URL. It makes no upstream call.
func (h *URLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "GET method required")
		return
	}

	q := r.URL.Query()
	redirectURI := redirectURI(q.Get("redirect_uri"), h.cfg.RedirectURI)
	if redirectURI == "" {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "The redirect_uri parameter is REQUIRED")
		return
	}

	common.WriteJSON(w, URLResponse{URL: h.cfg.Identity.LoginURL(redirectURI, q.Get("state"))})
}

// CodeHandler answers POST /login/code
type CodeHandler struct {
	cfg Config
}

// NewCodeHandler creates an authorization code handler
func NewCodeHandler(cfg Config) *CodeHandler {
	return &CodeHandler{cfg: cfg}
}

// ServeHTTP redeems the code once and returns a new credential bundle
func (h *CodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "POST method required")
		return
	}

	if err := r.ParseForm(); err != nil {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "Invalid request format")
		return
	}

	for key, values := range r.PostForm {
		if len(values) > 1 {
			common.WriteError(w, common.ErrorCodeInvalidRequest,
				"Parameters MUST NOT be included more than once: "+key)
			return
		}
	}

	redirectURI := redirectURI(r.PostForm.Get("redirect_uri"), h.cfg.RedirectURI)
	if redirectURI == "" {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "The redirect_uri parameter is REQUIRED")
		return
	}

	strategy := login.RedirectCode{
		Client:      h.cfg.Identity,
		Code:        r.PostForm.Get("code"),
		RedirectURI: redirectURI,
	}
	token, err := strategy.Authorize(r.Context())
	if errors.Is(err, login.ErrMissingCode) {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "The code parameter is REQUIRED")
		return
	}
	if err != nil {
		common.WriteUpstreamError(w, r, err)
		return
	}

	bundle, err := h.cfg.Accounts.Create(r.Context(), token)
	if err != nil {
		common.WriteUpstreamError(w, r, err)
		return
	}
	common.WriteJSON(w, bundle)
}

func redirectURI(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}
