// Package providertest runs a fake of every upstream provider in the token
// chain on one httptest server and records the order of calls.
package providertest

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wrale/game-session-auth/internal/minecraft"
	"github.com/wrale/game-session-auth/internal/oauth"
	"github.com/wrale/game-session-auth/internal/transport"
	"github.com/wrale/game-session-auth/internal/xboxlive"
)

// Paths served by the fake
const (
	PathToken      = "/consumers/oauth2/v2.0/token"
	PathDeviceCode = "/consumers/oauth2/v2.0/devicecode"
	PathUserAuth   = "/user/authenticate"
	PathXSTS       = "/xsts/authorize"
	PathGameLogin  = "/authentication/login_with_xbox"
)

// ClientID is the client ID configured by Clients
const ClientID = "test-client"

type reply struct {
	status int
	body   string
}

// Server is a fake identity platform, broker and game service
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	replies map[string]reply
	delays  map[string]time.Duration
	calls   []string
}

// New starts a Server that is closed when t finishes. Every path answers
// 404 until Reply is called for it.
func New(t *testing.T) *Server {
	t.Helper()
	s := &Server{replies: make(map[string]reply), delays: make(map[string]time.Duration)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, r.URL.Path)
	rep, ok := s.replies[r.URL.Path]
	delay := s.delays[r.URL.Path]
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	io.WriteString(w, rep.body)
}

// Reply sets the response for path
func (s *Server) Reply(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[path] = reply{status: status, body: body}
}

// Delay holds every response for path by d
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[path] = d
}

// Calls returns the paths requested so far, in order
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ResetCalls forgets the recorded calls
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Clients returns provider clients pointed at the fake
func (s *Server) Clients(t *testing.T) (*oauth.Client, *xboxlive.Client, *minecraft.Client) {
	t.Helper()
	httpClient := transport.New(transport.WithLogger(DiscardLogger()))

	identity, err := oauth.NewClient(oauth.Config{ClientID: ClientID, AuthorityURL: s.URL + "/consumers"}, httpClient)
	if err != nil {
		t.Fatalf("creating identity client: %v", err)
	}
	broker := xboxlive.NewClient(xboxlive.Config{
		UserAuthURL: s.URL + PathUserAuth,
		XSTSAuthURL: s.URL + PathXSTS,
	}, httpClient)
	game := minecraft.NewClient(s.URL+PathGameLogin, httpClient)
	return identity, broker, game
}

// DiscardLogger returns a logger that drops everything
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TokenBody is an identity platform token response
func TokenBody(access, refresh string, expiresIn int64) string {
	if refresh == "" {
		return fmt.Sprintf(`{"token_type":"Bearer","scope":"XboxLive.signin offline_access","access_token":%q,"expires_in":%d}`,
			access, expiresIn)
	}
	return fmt.Sprintf(`{"token_type":"Bearer","scope":"XboxLive.signin offline_access","access_token":%q,"refresh_token":%q,"expires_in":%d}`,
		access, refresh, expiresIn)
}

// BrokerBody is a broker response carrying one user claim
func BrokerBody(token, userHash string, issued, notAfter time.Time) string {
	return fmt.Sprintf(`{"IssueInstant":%q,"NotAfter":%q,"Token":%q,"DisplayClaims":{"xui":[{"uhs":%q}]}}`,
		issued.Format(time.RFC3339Nano), notAfter.Format(time.RFC3339Nano), token, userHash)
}

// GameBody is a game service login response
func GameBody(token string, expiresIn int64) string {
	return fmt.Sprintf(`{"username":"player","roles":[],"access_token":%q,"token_type":"Bearer","expires_in":%d}`,
		token, expiresIn)
}

// ErrorBody is an identity platform error response
func ErrorBody(code, description string) string {
	return fmt.Sprintf(`{"error":%q,"error_description":%q,"error_codes":[70000]}`, code, description)
}
