// Package token completes device logins by polling on the client's behalf
// and returning a credential bundle once the user approves.
package token

import (
	"context"
	"errors"
	"net/http"

	"github.com/wrale/game-session-auth/cmd/game-session-auth/handlers/common"
	"github.com/wrale/game-session-auth/internal/account"
	"github.com/wrale/game-session-auth/internal/deviceflow"
	"github.com/wrale/game-session-auth/internal/logging"
	"github.com/wrale/game-session-auth/internal/oauth"
	"github.com/wrale/game-session-auth/internal/refreshlock"
)

// Poller polls stored device sessions
type Poller interface {
	Poll(ctx context.Context, s *deviceflow.Session) (deviceflow.Outcome, error)
	Expire(s *deviceflow.Session) bool
}

// BundleCreator turns an approved provider token into a credential bundle
type BundleCreator interface {
	Create(ctx context.Context, token *oauth.ProviderToken) (*account.Bundle, error)
}

// Locker runs fn while no other poll of the same device code is in flight.
// It returns refreshlock.ErrLocked when one is.
type Locker interface {
	Do(ctx context.Context, name string, fn func(context.Context) error) error
}

// Config contains handler dependencies
type Config struct {
	Poller   Poller
	Store    deviceflow.Store
	Accounts BundleCreator
	Locks    Locker
}

// Handler processes device token requests
type Handler struct {
	poller   Poller
	store    deviceflow.Store
	accounts BundleCreator
	locks    Locker
}

// New creates a new token request handler
func New(cfg Config) *Handler {
	return &Handler{
		poller:   cfg.Poller,
		store:    cfg.Store,
		accounts: cfg.Accounts,
		locks:    cfg.Locks,
	}
}

// ServeHTTP handles token polling requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "POST method required")
		return
	}

	if err := r.ParseForm(); err != nil {
		common.WriteError(w, common.ErrorCodeInvalidRequest, "Invalid request format")
		return
	}

	for key, values := range r.Form {
		if len(values) > 1 {
			common.WriteError(w, common.ErrorCodeInvalidRequest,
				"Parameters MUST NOT be included more than once: "+key)
			return
		}
	}

	grantType := r.Form.Get("grant_type")
	if grantType == "" {
		common.WriteError(w, common.ErrorCodeInvalidRequest,
			"The grant_type parameter is REQUIRED")
		return
	}

	if grantType != oauth.DeviceCodeGrantType {
		common.WriteError(w, common.ErrorCodeUnsupportedGrantType,
			"Only "+oauth.DeviceCodeGrantType+" is supported")
		return
	}

	deviceCode := r.Form.Get("device_code")
	if deviceCode == "" {
		common.WriteError(w, common.ErrorCodeInvalidRequest,
			"The device_code parameter is REQUIRED")
		return
	}

	// One poll per device code at a time: the session is read, polled and
	// written back under the lease.
	err := h.locks.Do(r.Context(), deviceCode, func(ctx context.Context) error {
		h.poll(ctx, w, r, deviceCode)
		return nil
	})
	if errors.Is(err, refreshlock.ErrLocked) {
		common.WriteError(w, common.ErrorCodeSlowDown,
			"Another poll of this device_code is in progress")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("locking device session", "error", err)
		common.WriteErrorStatus(w, http.StatusInternalServerError, common.ErrorCodeServerError,
			"Failed to lock device session")
	}
}

// poll loads the session, polls the provider once if the interval allows and
// writes the response
func (h *Handler) poll(ctx context.Context, w http.ResponseWriter, r *http.Request, deviceCode string) {
	session, err := h.store.GetSession(ctx, deviceCode)
	if err != nil {
		common.WriteErrorStatus(w, http.StatusInternalServerError, common.ErrorCodeServerError,
			"Failed to load device session")
		return
	}
	if session == nil {
		common.WriteError(w, common.ErrorCodeInvalidGrant,
			"The device_code is invalid or expired")
		return
	}

	if h.poller.Expire(session) {
		h.discard(r, session)
		common.WriteError(w, common.ErrorCodeExpiredToken, "The device_code has expired")
		return
	}

	outcome, err := h.poller.Poll(ctx, session)
	if err != nil {
		switch {
		case session.State == deviceflow.StateExpired:
			h.discard(r, session)
			common.WriteError(w, common.ErrorCodeExpiredToken, "The device_code has expired")
		case errors.Is(err, deviceflow.ErrSessionClosed):
			h.discard(r, session)
			common.WriteError(w, common.ErrorCodeInvalidGrant, "The device_code is invalid or expired")
		default:
			h.save(r, session)
			common.WriteUpstreamError(w, r, err)
		}
		return
	}

	switch outcome.Status {
	case deviceflow.Pending:
		h.save(r, session)
		common.WriteError(w, common.ErrorCodeAuthorizationPending,
			"The authorization request is still pending")

	case deviceflow.Declined:
		h.discard(r, session)
		common.WriteError(w, common.ErrorCodeAccessDenied,
			"The user declined the authorization request")

	case deviceflow.Approved:
		h.discard(r, session)
		bundle, err := h.accounts.Create(ctx, outcome.Token)
		if err != nil {
			common.WriteUpstreamError(w, r, err)
			return
		}
		common.WriteJSON(w, bundle)
	}
}

// save persists the poll time so the next request is throttled correctly
func (h *Handler) save(r *http.Request, s *deviceflow.Session) {
	if err := h.store.SaveSession(r.Context(), s); err != nil {
		logging.FromContext(r.Context()).Warn("saving device session", "user_code", s.UserCode, "error", err)
	}
}

func (h *Handler) discard(r *http.Request, s *deviceflow.Session) {
	if err := h.store.DeleteSession(r.Context(), s.DeviceCode); err != nil {
		logging.FromContext(r.Context()).Warn("deleting device session", "user_code", s.UserCode, "error", err)
	}
}
