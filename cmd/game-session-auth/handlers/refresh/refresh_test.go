package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/common/test"
	"github.com/wrale/game-session-auth/internal/account"
	"github.com/wrale/game-session-auth/internal/providertest"
	"github.com/wrale/game-session-auth/internal/refreshlock"
)

// fakeLocker records the accounts it locked and optionally reports contention
type fakeLocker struct {
	locked   bool
	accounts []string
}

func (f *fakeLocker) Do(ctx context.Context, account string, fn func(context.Context) error) error {
	f.accounts = append(f.accounts, account)
	if f.locked {
		return refreshlock.ErrLocked
	}
	return fn(ctx)
}

func postedBundle(consoleExpiry, gameExpiry time.Time) *account.Bundle {
	return &account.Bundle{
		RefreshToken: "refresh-0",
		ConsoleIdentity: account.ConsoleIdentity{
			Token:     "xbl-0",
			UserHash:  test.UserHash,
			ExpiresAt: consoleExpiry,
		},
		GameSession: account.GameSession{
			Token:     "game-0",
			ExpiresAt: gameExpiry,
		},
	}
}

func encode(t *testing.T, b *account.Bundle) string {
	t.Helper()
	var buf bytes.Buffer
	if err := account.Encode(&buf, b); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return buf.String()
}

func TestRefreshHandler(t *testing.T) {
	later := test.Epoch.Add(time.Hour)

	tests := []struct {
		name          string
		method        string
		body          func(t *testing.T) string
		locked        bool
		tokenStatus   int
		tokenBody     string
		wantStatus    int
		wantErrorCode string
		wantStage     string
		wantCalls     []string
		wantResponse  *Response
	}{
		{
			name:          "wrong method",
			method:        http.MethodGet,
			body:          func(*testing.T) string { return "" },
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
		},
		{
			name:          "malformed bundle",
			method:        http.MethodPost,
			body:          func(*testing.T) string { return `{"refresh_token":` },
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
		},
		{
			name:          "incomplete bundle",
			method:        http.MethodPost,
			body:          func(*testing.T) string { return `{"refresh_token":"r"}` },
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_request",
		},
		{
			name:   "still fresh",
			method: http.MethodPost,
			body: func(t *testing.T) string {
				return encode(t, postedBundle(later, later))
			},
			wantStatus: http.StatusOK,
			wantResponse: &Response{
				Refreshed: false,
				Bundle:    postedBundle(later, later),
			},
		},
		{
			name:   "game session expired",
			method: http.MethodPost,
			body: func(t *testing.T) string {
				return encode(t, postedBundle(later, test.Epoch))
			},
			wantStatus: http.StatusOK,
			wantCalls:  []string{providertest.PathXSTS, providertest.PathGameLogin},
			wantResponse: &Response{
				Refreshed: true,
				Bundle: func() *account.Bundle {
					b := postedBundle(later, test.Epoch)
					b.GameSession = test.ChainBundle().GameSession
					return b
				}(),
			},
		},
		{
			name:   "console identity expired",
			method: http.MethodPost,
			body: func(t *testing.T) string {
				return encode(t, postedBundle(test.Epoch, test.Epoch))
			},
			wantStatus: http.StatusOK,
			wantCalls: []string{
				providertest.PathToken,
				providertest.PathUserAuth,
				providertest.PathXSTS,
				providertest.PathGameLogin,
			},
			wantResponse: &Response{Refreshed: true, Bundle: test.ChainBundle()},
		},
		{
			name:   "refresh token revoked",
			method: http.MethodPost,
			body: func(t *testing.T) string {
				return encode(t, postedBundle(test.Epoch, test.Epoch))
			},
			tokenStatus:   http.StatusBadRequest,
			tokenBody:     providertest.ErrorBody("invalid_grant", "refresh token revoked"),
			wantStatus:    http.StatusBadRequest,
			wantErrorCode: "invalid_grant",
			wantStage:     "provider_refresh",
			wantCalls:     []string{providertest.PathToken},
		},
		{
			name:   "refresh in progress",
			method: http.MethodPost,
			body: func(t *testing.T) string {
				return encode(t, postedBundle(test.Epoch, test.Epoch))
			},
			locked:        true,
			wantStatus:    http.StatusConflict,
			wantErrorCode: "refresh_in_progress",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := providertest.New(t)
			test.ReplyChain(srv)
			if tt.tokenStatus != 0 {
				srv.Reply(providertest.PathToken, tt.tokenStatus, tt.tokenBody)
			}
			locker := &fakeLocker{locked: tt.locked}
			handler := New(test.NewAccounts(t, srv, test.NewClock()), locker)

			req := httptest.NewRequest(tt.method, "/account/refresh", strings.NewReader(tt.body(t)))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Header().Get("Cache-Control") != "no-store" {
				t.Error("missing Cache-Control: no-store header")
			}
			if diff := cmp.Diff(tt.wantCalls, srv.Calls()); diff != "" {
				t.Errorf("upstream calls mismatch (-want +got):\n%s", diff)
			}

			if tt.wantErrorCode != "" {
				var resp map[string]any
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if got := resp["error"].(string); got != tt.wantErrorCode {
					t.Errorf("error code = %q, want %q", got, tt.wantErrorCode)
				}
				if got, _ := resp["stage"].(string); got != tt.wantStage {
					t.Errorf("stage = %q, want %q", got, tt.wantStage)
				}
				return
			}

			if diff := cmp.Diff([]string{test.UserHash}, locker.accounts); diff != "" {
				t.Errorf("locked accounts mismatch (-want +got):\n%s", diff)
			}
			var got Response
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if diff := cmp.Diff(tt.wantResponse, &got); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
