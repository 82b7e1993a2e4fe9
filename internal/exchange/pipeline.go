// Package exchange turns a provider token into a game session token through
// the console identity broker. The hops depend on each other's output and
// always run one after another.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wrale/game-session-auth/internal/autherr"
	"github.com/wrale/game-session-auth/internal/minecraft"
	"github.com/wrale/game-session-auth/internal/oauth"
	"github.com/wrale/game-session-auth/internal/xboxlive"
)

// Broker is the console identity broker
type Broker interface {
	AuthenticateUser(ctx context.Context, accessToken string) (*xboxlive.Response, error)
	AuthorizeSecurityToken(ctx context.Context, userToken string) (*xboxlive.Response, error)
}

// GameService is the game service authenticator
type GameService interface {
	LoginWithXbox(ctx context.Context, userHash, securityToken string) (*minecraft.LoginResponse, error)
}

// Pipeline runs the exchange hops
type Pipeline struct {
	broker Broker
	game   GameService
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithClock sets the time source used to compute and check expiries
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline
func New(broker Broker, game GameService, opts ...Option) *Pipeline {
	p := &Pipeline{
		broker: broker,
		game:   game,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Now returns the pipeline's current time
func (p *Pipeline) Now() time.Time {
	return p.now()
}

// ConsoleIdentity presents the provider access token to the broker
func (p *Pipeline) ConsoleIdentity(ctx context.Context, token *oauth.ProviderToken) (*ConsoleIdentityToken, error) {
	const op = "authenticate user"
	p.logger.Debug("acquiring console identity token")

	resp, err := p.broker.AuthenticateUser(ctx, token.AccessToken)
	if err != nil {
		return nil, &HopError{Hop: HopConsoleIdentity, Err: err}
	}
	uhs, notAfter, err := p.checkBrokerResponse(op, resp)
	if err != nil {
		return nil, &HopError{Hop: HopConsoleIdentity, Err: err}
	}
	return &ConsoleIdentityToken{Token: resp.Token, UserHash: uhs, NotAfter: notAfter}, nil
}

// SecurityToken re-presents a console identity token for the game service
// relying party
func (p *Pipeline) SecurityToken(ctx context.Context, ci *ConsoleIdentityToken) (*SecurityToken, error) {
	const op = "authorize security token"
	p.logger.Debug("acquiring security token")

	resp, err := p.broker.AuthorizeSecurityToken(ctx, ci.Token)
	if err != nil {
		return nil, &HopError{Hop: HopSecurityToken, Err: err}
	}
	uhs, notAfter, err := p.checkBrokerResponse(op, resp)
	if err != nil {
		return nil, &HopError{Hop: HopSecurityToken, Err: err}
	}
	return &SecurityToken{Token: resp.Token, UserHash: uhs, NotAfter: notAfter}, nil
}

// GameSession presents a security token to the game service. The expiry is
// the clock reading after the response plus the advertised lifetime.
func (p *Pipeline) GameSession(ctx context.Context, st *SecurityToken) (*GameSessionToken, error) {
	p.logger.Debug("acquiring game session token")

	resp, err := p.game.LoginWithXbox(ctx, st.UserHash, st.Token)
	if err != nil {
		return nil, &HopError{Hop: HopGameSession, Err: err}
	}
	return &GameSessionToken{
		Token:     resp.AccessToken,
		ExpiresAt: p.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		Username:  resp.Username,
		Roles:     resp.Roles,
	}, nil
}

// ExchangeFull runs all three hops. The security token is discarded.
func (p *Pipeline) ExchangeFull(ctx context.Context, token *oauth.ProviderToken) (*ConsoleIdentityToken, *GameSessionToken, error) {
	ci, err := p.ConsoleIdentity(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	gs, err := p.FromConsoleIdentity(ctx, ci)
	if err != nil {
		return nil, nil, err
	}
	return ci, gs, nil
}

// FromConsoleIdentity runs the security token and game session hops
func (p *Pipeline) FromConsoleIdentity(ctx context.Context, ci *ConsoleIdentityToken) (*GameSessionToken, error) {
	st, err := p.SecurityToken(ctx, ci)
	if err != nil {
		return nil, err
	}
	return p.GameSession(ctx, st)
}

func (p *Pipeline) checkBrokerResponse(op string, resp *xboxlive.Response) (string, time.Time, error) {
	uhs, err := resp.UserHash()
	if err != nil {
		return "", time.Time{}, autherr.Decode(autherr.ProviderBroker, op, err)
	}
	if !resp.NotAfter.After(p.now()) {
		return "", time.Time{}, autherr.Decode(autherr.ProviderBroker, op,
			fmt.Errorf("token NotAfter %s is not in the future", resp.NotAfter.Format(time.RFC3339)))
	}
	return uhs, resp.NotAfter, nil
}
