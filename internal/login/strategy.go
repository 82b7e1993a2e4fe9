// Package login provides the two ways to obtain the initial provider token:
// an interactive redirect-code exchange and an unattended device-code login.
package login

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wrale/game-session-auth/internal/autherr"
	"github.com/wrale/game-session-auth/internal/deviceflow"
	"github.com/wrale/game-session-auth/internal/oauth"
)

// ErrMissingCode is returned by RedirectCode when no code was supplied
var ErrMissingCode = errors.New("authorization code is required")

// Strategy produces an initial provider token. RedirectCode and DeviceCode
// are the only implementations.
type Strategy interface {
	Authorize(ctx context.Context) (*oauth.ProviderToken, error)

	strategy()
}

// CodeExchanger redeems authorization codes
type CodeExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*oauth.ProviderToken, error)
}

// RedirectCode redeems a code that the user's browser brought back to
// RedirectURI. The code is single use and never retried.
type RedirectCode struct {
	Client      CodeExchanger
	Code        string
	RedirectURI string
}

func (RedirectCode) strategy() {}

// Authorize exchanges the code with exactly one request
func (s RedirectCode) Authorize(ctx context.Context) (*oauth.ProviderToken, error) {
	if s.Code == "" {
		return nil, ErrMissingCode
	}
	return s.Client.ExchangeCode(ctx, s.Code, s.RedirectURI)
}

// Prompt shows a started device session to the user
type Prompt func(s *deviceflow.Session)

// DeviceCode runs the unattended login loop: it starts a session, shows it
// with Prompt and polls until the user decides or the code expires.
type DeviceCode struct {
	Poller *deviceflow.Poller
	Prompt Prompt
	Logger *slog.Logger

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (DeviceCode) strategy() {}

// Authorize returns the approved provider token. A declined login is an
// Unauthenticated error and an expired code is deviceflow.ErrExpiredCode.
func (s DeviceCode) Authorize(ctx context.Context) (*oauth.ProviderToken, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	session, err := s.Poller.Start(ctx)
	if err != nil {
		return nil, err
	}
	if s.Prompt != nil {
		s.Prompt(session)
	}

	for {
		if s.Poller.Expire(session) {
			return nil, deviceflow.ErrExpiredCode
		}
		if wait := session.NextPollAt().Sub(s.Poller.Now()); wait > 0 {
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		outcome, err := s.Poller.Poll(ctx, session)
		if err != nil {
			if session.State == deviceflow.StateExpired {
				return nil, errors.Join(deviceflow.ErrExpiredCode, err)
			}
			return nil, err
		}

		switch outcome.Status {
		case deviceflow.Approved:
			return outcome.Token, nil
		case deviceflow.Declined:
			return nil, autherr.Unauthenticated(autherr.ProviderIdentity, "device login",
				"authorization_declined", "the user declined the sign-in request")
		default:
			logger.Debug("device login pending", "user_code", session.UserCode)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
