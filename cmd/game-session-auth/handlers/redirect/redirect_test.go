package redirect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/common/test"
	"github.com/wrale/game-session-auth/internal/account"
	"github.com/wrale/game-session-auth/internal/providertest"
)

const defaultRedirect = "http://localhost:7777/callback"

func newConfig(t *testing.T, srv *providertest.Server) Config {
	t.Helper()
	identity, _, _ := srv.Clients(t)
	return Config{
		Identity:    identity,
		Accounts:    test.NewAccounts(t, srv, test.NewClock()),
		RedirectURI: defaultRedirect,
	}
}

func TestURLHandler(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		query         string
		noDefault     bool
		wantStatus    int
		wantQuery     url.Values
		wantErrorCode string
	}{
		{
			name:          "wrong method",
			method:        http.MethodPost,
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
		},
		{
			name:       "default redirect",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
			wantQuery: url.Values{
				"client_id":     {providertest.ClientID},
				"response_type": {"code"},
				"redirect_uri":  {defaultRedirect},
				"scope":         {"XboxLive.signin offline_access"},
			},
		},
		{
			name:       "requested redirect and state",
			method:     http.MethodGet,
			query:      "?redirect_uri=https%3A%2F%2Flauncher.example%2Fauth&state=xyz",
			wantStatus: http.StatusOK,
			wantQuery: url.Values{
				"client_id":     {providertest.ClientID},
				"response_type": {"code"},
				"redirect_uri":  {"https://launcher.example/auth"},
				"scope":         {"XboxLive.signin offline_access"},
				"state":         {"xyz"},
			},
		},
		{
			name:          "no redirect available",
			method:        http.MethodGet,
			noDefault:     true,
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := providertest.New(t)
			cfg := newConfig(t, srv)
			if tt.noDefault {
				cfg.RedirectURI = ""
			}

			req := httptest.NewRequest(tt.method, "/login/url"+tt.query, nil)
			w := httptest.NewRecorder()
			NewURLHandler(cfg).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if calls := srv.Calls(); len(calls) != 0 {
				t.Errorf("upstream calls = %v, want none", calls)
			}

			if tt.wantErrorCode != "" {
				var resp map[string]any
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if got := resp["error"].(string); got != tt.wantErrorCode {
					t.Errorf("error code = %q, want %q", got, tt.wantErrorCode)
				}
				return
			}

			var resp URLResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			u, err := url.Parse(resp.URL)
			if err != nil {
				t.Fatalf("parsing login URL: %v", err)
			}
			if got, want := u.Path, "/consumers/oauth2/v2.0/authorize"; got != want {
				t.Errorf("login URL path = %q, want %q", got, want)
			}
			if diff := cmp.Diff(tt.wantQuery, u.Query()); diff != "" {
				t.Errorf("login URL query mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodeHandler(t *testing.T) {
	tests := []struct {
		name          string
		form          url.Values
		tokenStatus   int
		tokenBody     string
		wantStatus    int
		wantErrorCode string
		wantCalls     int
		wantBundle    *account.Bundle
	}{
		{
			name:          "missing code",
			form:          url.Values{},
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
		},
		{
			name:          "duplicate code",
			form:          url.Values{"code": {"a", "b"}},
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
		},
		{
			name:       "code redeemed",
			form:       url.Values{"code": {"code-abc"}},
			wantStatus: http.StatusOK,
			wantCalls:  4,
			wantBundle: test.ChainBundle(),
		},
		{
			name:          "code already used",
			form:          url.Values{"code": {"code-abc"}},
			tokenStatus:   http.StatusBadRequest,
			tokenBody:     providertest.ErrorBody("invalid_grant", "code was already redeemed"),
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_grant",
			wantCalls:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := providertest.New(t)
			test.ReplyChain(srv)
			if tt.tokenStatus != 0 {
				srv.Reply(providertest.PathToken, tt.tokenStatus, tt.tokenBody)
			}

			req := httptest.NewRequest(http.MethodPost, "/login/code", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			NewCodeHandler(newConfig(t, srv)).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := len(srv.Calls()); got != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", got, tt.wantCalls)
			}
			if w.Header().Get("Cache-Control") != "no-store" {
				t.Error("missing Cache-Control: no-store header")
			}

			if tt.wantErrorCode != "" {
				var resp map[string]any
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if got := resp["error"].(string); got != tt.wantErrorCode {
					t.Errorf("error code = %q, want %q", got, tt.wantErrorCode)
				}
				return
			}

			var got account.Bundle
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if diff := cmp.Diff(tt.wantBundle, &got); diff != "" {
				t.Errorf("bundle mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
