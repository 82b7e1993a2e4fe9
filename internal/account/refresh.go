package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wrale/game-session-auth/internal/exchange"
	"github.com/wrale/game-session-auth/internal/oauth"
)

// Stage names the part of the refresh policy that failed
type Stage string

const (
	StageProviderRefresh Stage = "provider_refresh"
	StageExchange        Stage = "exchange"
)

// Error is returned by Create and EnsureFresh
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("account %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TokenRefresher exchanges a refresh token for a new provider token
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*oauth.ProviderToken, error)
}

// Manager creates bundles and keeps them fresh. It shares the pipeline's
// clock. A bundle must not be refreshed by two callers at once.
type Manager struct {
	identity TokenRefresher
	pipeline *exchange.Pipeline
	logger   *slog.Logger
}

// NewManager creates a Manager
func NewManager(identity TokenRefresher, pipeline *exchange.Pipeline, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{identity: identity, pipeline: pipeline, logger: logger}
}

// Create runs the full exchange once and builds a bundle from it
func (m *Manager) Create(ctx context.Context, token *oauth.ProviderToken) (*Bundle, error) {
	ci, gs, err := m.pipeline.ExchangeFull(ctx, token)
	if err != nil {
		return nil, &Error{Stage: StageExchange, Err: err}
	}

	b := &Bundle{RefreshToken: token.RefreshToken}
	b.setConsoleIdentity(ci)
	b.setGameSession(gs)

	m.logger.Info("credential bundle created",
		"user_hash", b.ConsoleIdentity.UserHash,
		"game_session_expires_at", b.GameSession.ExpiresAt,
	)
	return b, nil
}

// EnsureFresh re-runs the exchange from the first hop whose token expired
// and reports whether it made any network call. b is modified only when
// every call succeeds.
//
//   - game session still valid: nothing to do
//   - console identity still valid: security token and game session hops
//   - otherwise: provider refresh followed by all three hops
func (m *Manager) EnsureFresh(ctx context.Context, b *Bundle) (bool, error) {
	now := m.pipeline.Now()
	if b.GameSession.ExpiresAt.After(now) {
		return false, nil
	}

	if b.ConsoleIdentity.ExpiresAt.After(now) {
		m.logger.Debug("game session expired, reusing console identity",
			"user_hash", b.ConsoleIdentity.UserHash)

		gs, err := m.pipeline.FromConsoleIdentity(ctx, b.consoleIdentityToken())
		if err != nil {
			return true, &Error{Stage: StageExchange, Err: err}
		}
		b.setGameSession(gs)
		return true, nil
	}

	m.logger.Debug("console identity expired, refreshing provider token",
		"user_hash", b.ConsoleIdentity.UserHash)

	token, err := m.identity.RefreshToken(ctx, b.RefreshToken)
	if err != nil {
		return true, &Error{Stage: StageProviderRefresh, Err: err}
	}
	ci, gs, err := m.pipeline.ExchangeFull(ctx, token)
	if err != nil {
		return true, &Error{Stage: StageExchange, Err: err}
	}

	if token.RefreshToken != "" {
		b.RefreshToken = token.RefreshToken
	}
	b.setConsoleIdentity(ci)
	b.setGameSession(gs)
	return true, nil
}

func (b *Bundle) consoleIdentityToken() *exchange.ConsoleIdentityToken {
	return &exchange.ConsoleIdentityToken{
		Token:    b.ConsoleIdentity.Token,
		UserHash: b.ConsoleIdentity.UserHash,
		NotAfter: b.ConsoleIdentity.ExpiresAt,
	}
}

func (b *Bundle) setConsoleIdentity(ci *exchange.ConsoleIdentityToken) {
	b.ConsoleIdentity = ConsoleIdentity{
		Token:     ci.Token,
		UserHash:  ci.UserHash,
		ExpiresAt: ci.NotAfter,
	}
}

func (b *Bundle) setGameSession(gs *exchange.GameSessionToken) {
	b.GameSession = GameSession{Token: gs.Token, ExpiresAt: gs.ExpiresAt}
}
