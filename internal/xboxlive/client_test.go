package xboxlive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wrale/game-session-auth/internal/autherr"
	"github.com/wrale/game-session-auth/internal/transport"
)

const brokerResponse = `{
	"IssueInstant": "2024-05-01T12:00:00.0000000Z",
	"NotAfter": "2024-05-15T12:00:00.0000000Z",
	"Token": "xbl-token",
	"DisplayClaims": {"xui": [{"uhs": "hash-1"}, {"uhs": "hash-2"}]}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	httpClient := transport.New(transport.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return NewClient(Config{UserAuthURL: srv.URL + "/user/authenticate", XSTSAuthURL: srv.URL + "/xsts/authorize"}, httpClient)
}

func TestAuthenticateUser(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/authenticate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		io.WriteString(w, brokerResponse)
	})

	resp, err := client.AuthenticateUser(context.Background(), "ms-access")
	if err != nil {
		t.Fatalf("AuthenticateUser() error = %v", err)
	}

	want := map[string]any{
		"Properties": map[string]any{
			"AuthMethod": "RPS",
			"SiteName":   "user.auth.xboxlive.com",
			"RpsTicket":  "d=ms-access",
		},
		"RelyingParty": "http://auth.xboxlive.com",
		"TokenType":    "JWT",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}

	if resp.Token != "xbl-token" {
		t.Errorf("Token = %q", resp.Token)
	}
	if want := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC); !resp.NotAfter.Equal(want) {
		t.Errorf("NotAfter = %v, want %v", resp.NotAfter, want)
	}
	uhs, err := resp.UserHash()
	if err != nil || uhs != "hash-1" {
		t.Errorf("UserHash() = %q, %v; want hash-1", uhs, err)
	}
}

func TestAuthorizeSecurityToken(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/xsts/authorize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		io.WriteString(w, brokerResponse)
	})

	if _, err := client.AuthorizeSecurityToken(context.Background(), "xbl-token"); err != nil {
		t.Fatalf("AuthorizeSecurityToken() error = %v", err)
	}

	want := map[string]any{
		"Properties": map[string]any{
			"SandboxId":  "RETAIL",
			"UserTokens": []any{"xbl-token"},
		},
		"RelyingParty": "rp://api.minecraftservices.com/",
		"TokenType":    "JWT",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestBrokerErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind autherr.Kind
		wantCode string
	}{
		{
			name:     "no console profile",
			status:   http.StatusUnauthorized,
			body:     `{"Identity":"0","XErr":2148916233,"Message":"","Redirect":"https://start.ui.xboxlive.com/CreateAccount"}`,
			wantKind: autherr.KindProviderRejected,
			wantCode: "2148916233",
		},
		{
			name:     "unparseable rejection",
			status:   http.StatusUnauthorized,
			body:     ``,
			wantKind: autherr.KindDecode,
		},
		{
			name:     "server fault",
			status:   http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			wantKind: autherr.KindServerFault,
		},
		{
			name:     "missing token",
			status:   http.StatusOK,
			body:     `{"NotAfter":"2024-05-15T12:00:00Z","DisplayClaims":{"xui":[{"uhs":"h"}]}}`,
			wantKind: autherr.KindDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := client.AuthorizeSecurityToken(context.Background(), "xbl-token")
			if got := autherr.KindOf(err); got != tt.wantKind {
				t.Fatalf("KindOf(%v) = %v, want %v", err, got, tt.wantKind)
			}
			if tt.wantCode != "" && !autherr.IsRejection(err, tt.wantCode) {
				t.Errorf("error = %v, want rejection %s", err, tt.wantCode)
			}
		})
	}
}

func TestUserHash(t *testing.T) {
	tests := []struct {
		name    string
		claims  []UserClaim
		want    string
		wantErr error
	}{
		{name: "first claim", claims: []UserClaim{{UserHash: "a"}, {UserHash: "b"}}, want: "a"},
		{name: "empty list", claims: nil, wantErr: ErrNoUserClaims},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &Response{DisplayClaims: DisplayClaims{XUI: tt.claims}}
			got, err := resp.UserHash()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("UserHash() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("UserHash() = %q, want %q", got, tt.want)
			}
		})
	}

	blank := &Response{DisplayClaims: DisplayClaims{XUI: []UserClaim{{}}}}
	if _, err := blank.UserHash(); err == nil {
		t.Error("UserHash() with blank hash error = nil")
	}
}
