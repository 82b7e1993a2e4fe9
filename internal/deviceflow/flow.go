// Package deviceflow drives the device authorization grant against the
// identity platform: starting a session, self-throttled polling and session
// storage for the HTTP surface.
package deviceflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wrale/game-session-auth/internal/autherr"
	"github.com/wrale/game-session-auth/internal/oauth"
)

// IdentityClient is the part of the identity platform client used for
// device logins
type IdentityClient interface {
	RequestDeviceCode(ctx context.Context) (*oauth.DeviceAuthorization, error)
	RequestDeviceToken(ctx context.Context, deviceCode string) (*oauth.ProviderToken, error)
}

// Poller starts and polls device sessions. It holds no per-session state and
// is safe for concurrent use; each Session must have a single writer.
type Poller struct {
	client          IdentityClient
	now             func() time.Time
	logger          *slog.Logger
	defaultInterval time.Duration
}

// NewPoller creates a new device flow poller with provided options
func NewPoller(client IdentityClient, opts ...Option) *Poller {
	p := &Poller{
		client:          client,
		now:             time.Now,
		logger:          slog.Default(),
		defaultInterval: oauth.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start requests a device code and returns a pending session. The first poll
// is allowed one interval after Start returns.
func (p *Poller) Start(ctx context.Context) (*Session, error) {
	auth, err := p.client.RequestDeviceCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting device login: %w", err)
	}

	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = p.defaultInterval
	}

	now := p.now()
	s := &Session{
		DeviceCode:      auth.DeviceCode,
		UserCode:        auth.UserCode,
		VerificationURI: auth.VerificationURI,
		Message:         auth.Message,
		Interval:        interval,
		ExpiresAt:       now.Add(time.Duration(auth.ExpiresIn) * time.Second),
		LastPollAt:      now,
		State:           StatePending,
	}

	p.logger.Debug("device login started",
		"user_code", s.UserCode,
		"verification_uri", s.VerificationURI,
		"expires_at", s.ExpiresAt,
		"interval", s.Interval,
	)
	return s, nil
}

// Poll makes at most one token request for s.
//
// A poll before s.NextPollAt returns Pending without contacting the provider
// and leaves s.LastPollAt untouched. Otherwise LastPollAt is set to now and
// the response is classified: authorization_pending is Pending,
// authorization_declined is Declined and a token is Approved. Any other
// failure is returned unchanged; expired_token also moves s to StateExpired.
func (p *Poller) Poll(ctx context.Context, s *Session) (Outcome, error) {
	if s.State.Terminal() {
		return Outcome{}, fmt.Errorf("%w: %s", ErrSessionClosed, s.State)
	}

	now := p.now()
	if now.Before(s.NextPollAt()) {
		return Outcome{Status: Pending}, nil
	}
	s.LastPollAt = now
	s.State = StatePending

	token, err := p.client.RequestDeviceToken(ctx, s.DeviceCode)
	if err == nil {
		s.State = StateApproved
		p.logger.Debug("device login approved", "user_code", s.UserCode)
		return Outcome{Status: Approved, Token: token}, nil
	}

	var aerr *autherr.Error
	if !errors.As(err, &aerr) || aerr.Kind != autherr.KindProviderRejected {
		return Outcome{}, err
	}

	switch aerr.Code {
	case codeAuthorizationPending:
		return Outcome{Status: Pending}, nil
	case codeAuthorizationDeclined:
		s.State = StateDeclined
		p.logger.Info("device login declined", "user_code", s.UserCode)
		return Outcome{Status: Declined}, nil
	case codeExpiredToken:
		s.State = StateExpired
	}
	return Outcome{}, err
}

// Expire moves s to StateExpired if its lifetime has passed and reports
// whether it did
func (p *Poller) Expire(s *Session) bool {
	if s.State.Terminal() || !s.Expired(p.now()) {
		return false
	}
	s.State = StateExpired
	return true
}

// Now returns the poller's current time
func (p *Poller) Now() time.Time {
	return p.now()
}
